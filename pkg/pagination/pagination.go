// Package pagination implements keyset (seek) pagination over
// (timestamp DESC, id DESC) with opaque cursors.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// ErrInvalidCursor wraps every cursor decoding failure.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is a keyset position: the sort timestamp plus the row id tiebreaker.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// wireCursor is the JSON carried inside the base64 token.
type wireCursor struct {
	At int64     `json:"at"`
	ID uuid.UUID `json:"id"`
}

// Page is a single page of results plus the cursor for the next one.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting non-positive values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer asks for one extra row so Build can tell a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: cursor.CreatedAt.UnixNano(), ID: cursor.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token produced by EncodeCursor. An empty token is the
// first page and yields a nil cursor.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var wire wireCursor
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if wire.ID == uuid.Nil || wire.At <= 0 {
		return nil, fmt.Errorf("%w: missing position", ErrInvalidCursor)
	}
	return &Cursor{CreatedAt: time.Unix(0, wire.At).UTC(), ID: wire.ID}, nil
}

// Apply orders query newest-first by column and seeks past cursor when set.
func Apply(query *gorm.DB, column string, cursor *Cursor, limit int) *gorm.DB {
	if cursor != nil {
		col := clause.Column{Name: column}
		id := clause.Column{Name: "id"}
		query = query.Where(clause.Or(
			clause.Lt{Column: col, Value: cursor.CreatedAt},
			clause.And(
				clause.Eq{Column: col, Value: cursor.CreatedAt},
				clause.Lt{Column: id, Value: cursor.ID},
			),
		))
	}
	return query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(LimitWithBuffer(limit))
}

// Build trims the buffered row and computes the next cursor.
func Build[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}
	}
	return Page[T]{
		Items:      rows[:limit],
		NextCursor: EncodeCursor(cursorOf(rows[limit-1])),
	}
}

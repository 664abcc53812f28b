package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository stores outbox rows the publisher stopped retrying.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx dead-letters one event inside the publisher's batch transaction.
// A second insert for the same event_id is ignored, so a batch that rolls
// back after the insert and is retried does not fail on the unique index.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !entry.ErrorReason.IsValid() {
		return errors.New("dlq entry requires a known error reason")
	}
	if entry.ErrorMessage != nil {
		msg := truncateRunes(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// CountByReason summarises the dead-letter backlog for operators.
func (r *DLQRepository) CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	var rows []struct {
		ErrorReason enums.OutboxDLQErrorReason
		Total       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("error_reason, COUNT(*) AS total").
		Group("error_reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.OutboxDLQErrorReason]int64, len(rows))
	for _, row := range rows {
		out[row.ErrorReason] = row.Total
	}
	return out, nil
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	// Drop at most one partial rune left by the byte cut.
	for i := 0; i < utf8.UTFMax-1 && len(s) > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

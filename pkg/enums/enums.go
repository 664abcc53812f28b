// Package enums holds the closed string sets stored in the database and sent
// over the wire.
package enums

import (
	"fmt"
	"slices"
)

func member[T ~string](set []T, value T) bool {
	return slices.Contains(set, value)
}

// parse matches value exactly; kind names the enum in the error.
func parse[T ~string](set []T, kind, value string) (T, error) {
	if v := T(value); member(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}

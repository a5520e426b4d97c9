package repositories

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a "find first" query matches no row
var ErrNotFound = errors.New("record not found")

// wrapFirst maps gorm's not-found onto ErrNotFound and wraps every other failure
func wrapFirst(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

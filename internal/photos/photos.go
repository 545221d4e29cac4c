// Package photos stores processed copy photos under opaque keys.
package photos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for keys that hold no photo.
var ErrNotFound = errors.New("photo not found")

// Store persists photo bytes. Keys are generated by NewKey.
type Store interface {
	Put(ctx context.Context, key string, data []byte, mime string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh storage key for a photo of the given copy.
func NewKey(copyID int64) string {
	d := time.Now().UTC()
	return fmt.Sprintf("copies/%d/%d/%02d/%s.jpg", copyID, d.Year(), d.Month(), uuid.New())
}

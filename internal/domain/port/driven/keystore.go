package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// ErrKeyNotFound indicates no API key matches the lookup.
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore is the read side of the API key collaborator consulted before any
// summarize work begins.
type KeyStore interface {
	// Validate reports whether value is a known key.
	Validate(ctx context.Context, value string) (bool, error)
	// GetByValue returns the key record or ErrKeyNotFound.
	GetByValue(ctx context.Context, value string) (*model.APIKey, error)
}

// KeyAdmin adds the management operations used by the admin CLI.
type KeyAdmin interface {
	KeyStore

	Create(ctx context.Context, name string) (model.APIKey, error)
	List(ctx context.Context) ([]model.APIKey, error)
	// Rename returns ErrKeyNotFound if id does not exist.
	Rename(ctx context.Context, id int64, name string) error
	// Delete returns ErrKeyNotFound if id does not exist.
	Delete(ctx context.Context, id int64) error
}

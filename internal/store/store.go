package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, username string) (*models.User, error)
	// CreateUserIfNotExists inserts user under username unless a row already
	// exists. An existing row is left untouched. Reports whether a row was created.
	CreateUserIfNotExists(ctx context.Context, username string, user *models.User) (bool, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, username string) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, username string) error
}

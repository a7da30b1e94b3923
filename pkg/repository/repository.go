package repository

import (
	"context"

	semver "github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

// CrateRepository covers crate index records, head pointers, metadata
// and ownership.
type CrateRepository interface {
	// GetPackageInfo returns the newline-joined index document for a
	// crate, one JSON object per published version.
	GetPackageInfo(ctx context.Context, crateName string) (string, error)

	// StorePackageInfo runs the publish transaction: creates the crate
	// summary on first publish, enforces ownership, applies the
	// head-version rule and commits the per-version records.
	StorePackageInfo(ctx context.Context, crateName, version string, info types.PackageInfo, metadata types.Metadata, user types.AuthenticatedUser) error

	// SetYanked flips the yanked flag on an existing version.
	SetYanked(ctx context.Context, crateName, version string, yanked bool) error

	// ListOwners resolves the crate's owner ids to user records.
	ListOwners(ctx context.Context, crateName string) ([]types.User, error)

	// AddOwners unions the given user ids into the crate's owner set.
	AddOwners(ctx context.Context, crateName string, userIDs []uint32) error

	// GetCrateSummary returns the head pointer, or nil when the crate
	// does not exist.
	GetCrateSummary(ctx context.Context, crateName string) (*types.CrateSummary, error)

	// GetAllCrateDetails lists crate summaries, optionally filtered by
	// name prefix. The limit is capped at MaxCrateListLimit.
	GetAllCrateDetails(ctx context.Context, filter string, limit int) ([]types.CrateSummary, error)

	// GetCrateMetadata returns the stored publish payload for a
	// version, or nil when absent.
	GetCrateMetadata(ctx context.Context, crateName, version string) (*types.Metadata, error)

	// ListCrateVersions returns the published versions in the store's
	// natural sort-key order, which is lexicographic rather than
	// semver. Callers sort when they need semver order.
	ListCrateVersions(ctx context.Context, crateName string) ([]*semver.Version, error)
}

// TokenRepository covers bearer credentials.
type TokenRepository interface {
	// StoreToken persists a fresh token record keyed by the hash of
	// raw.
	StoreToken(ctx context.Context, raw []byte, name string, userID uint32) (*types.Token, error)

	// GetToken resolves a raw credential; not-found returns nil, nil.
	GetToken(ctx context.Context, raw []byte) (*types.Token, error)

	// ListTokens returns all tokens of a user.
	ListTokens(ctx context.Context, userID uint32) ([]types.Token, error)

	// DeleteToken removes a token by id. Deleting an unknown id is a
	// no-op.
	DeleteToken(ctx context.Context, userID uint32, tokenID string) error
}

// UserRepository covers registry users provisioned from an external
// identity provider.
type UserRepository interface {
	// UpdateOrCreateUser is the idempotent upsert by external login.
	UpdateOrCreateUser(ctx context.Context, data types.UserData) (*types.User, error)

	// GetUserByID returns a user, or nil when absent.
	GetUserByID(ctx context.Context, id uint32) (*types.User, error)

	// GetUserByLogin returns a user, or nil when absent.
	GetUserByLogin(ctx context.Context, login string) (*types.User, error)

	// GetUsers returns all users in id order.
	GetUsers(ctx context.Context) ([]types.User, error)
}

// Repository is the full persistence surface handed to the API layer.
type Repository interface {
	CrateRepository
	TokenRepository
	UserRepository
}

// StoreRepository implements Repository against a document store.
type StoreRepository struct {
	store  storage.Store
	logger zerolog.Logger
}

// New creates a repository over the given store.
func New(store storage.Store) *StoreRepository {
	return &StoreRepository{
		store:  store,
		logger: log.WithComponent("repository"),
	}
}

var _ Repository = (*StoreRepository)(nil)

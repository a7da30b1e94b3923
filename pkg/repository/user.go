package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/keys"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

// createRetries bounds how often a user creation is retried when the
// id allocation races with a concurrent creation.
const createRetries = 3

// UpdateOrCreateUser is the idempotent upsert by external login. A new
// login allocates the next dense id and commits both user records in
// one conditional transaction; an existing login is refreshed in place
// when the asserted profile drifted.
func (r *StoreRepository) UpdateOrCreateUser(ctx context.Context, data types.UserData) (*types.User, error) {
	existing, err := r.GetUserByLogin(ctx, data.Login)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		r.logger.Info().Str("login", data.Login).Msg("user not found, creating new user")
		return r.createNextUser(ctx, data)
	}

	if data.Matches(*existing) {
		return existing, nil
	}

	// The identity provider's claim wins; keep the allocated id.
	updated := data.IntoUser(existing.ID)
	if err := r.putUser(ctx, updated, false); err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetUserByID returns a user, or nil when absent.
func (r *StoreRepository) GetUserByID(ctx context.Context, id uint32) (*types.User, error) {
	return r.getUser(ctx, keys.UserIDSK(id))
}

// GetUserByLogin returns a user, or nil when absent.
func (r *StoreRepository) GetUserByLogin(ctx context.Context, login string) (*types.User, error) {
	return r.getUser(ctx, keys.UserLoginSK(login))
}

func (r *StoreRepository) getUser(ctx context.Context, sk string) (*types.User, error) {
	value, err := r.store.Get(ctx, keys.UsersPK, sk)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if value == nil {
		return nil, nil
	}

	var user types.User
	if err := json.Unmarshal(value, &user); err != nil {
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

// GetUsers returns all users in id order.
func (r *StoreRepository) GetUsers(ctx context.Context) ([]types.User, error) {
	records, err := r.store.Query(ctx, keys.UsersPK, storage.QueryOptions{
		Prefix: keys.UserIDPrefix,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	users := make([]types.User, 0, len(records))
	for _, rec := range records {
		var user types.User
		if err := json.Unmarshal(rec.Value, &user); err != nil {
			return nil, apperr.Internal(err)
		}
		users = append(users, user)
	}
	return users, nil
}

// createNextUser allocates the next id and commits the new user. The
// conditional commit closes the scan-then-write race: on conflict the
// scan is retried with a fresh view.
func (r *StoreRepository) createNextUser(ctx context.Context, data types.UserData) (*types.User, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		nextID, err := r.findNextUserID(ctx)
		if err != nil {
			return nil, err
		}
		r.logger.Info().Uint32("next_id", nextID).Msg("allocated next user id")

		user := data.IntoUser(nextID)
		err = r.putUser(ctx, user, true)
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, storage.ErrConditionFailed) {
			return nil, err
		}
		// Lost the race for this id; rescan.
	}
	return nil, apperr.Internal(errors.New("user creation kept conflicting, giving up"))
}

// findNextUserID reverse-scans the id records; ids are dense, so the
// first record holds the current maximum.
func (r *StoreRepository) findNextUserID(ctx context.Context) (uint32, error) {
	records, err := r.store.Query(ctx, keys.UsersPK, storage.QueryOptions{
		Prefix:  keys.UserIDPrefix,
		Limit:   1,
		Reverse: true,
	})
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if len(records) == 0 {
		return 1, nil
	}

	var user types.User
	if err := json.Unmarshal(records[0].Value, &user); err != nil {
		return 0, apperr.Internal(err)
	}
	return user.ID + 1, nil
}

// putUser writes the login-keyed and id-keyed records in one
// transaction. For a new user both puts are conditional on absence; for
// a profile refresh both are plain overwrites.
func (r *StoreRepository) putUser(ctx context.Context, user types.User, isNew bool) error {
	value, err := json.Marshal(user)
	if err != nil {
		return apperr.Internal(err)
	}

	condition := storage.ConditionNone
	if isNew {
		condition = storage.ConditionNotExists
	}

	err = r.store.Transact(ctx,
		storage.Write{PK: keys.UsersPK, SK: keys.UserLoginSK(user.Login), Value: value, Condition: condition},
		storage.Write{PK: keys.UsersPK, SK: keys.UserIDSK(user.ID), Value: value, Condition: condition},
	)
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return err
		}
		return apperr.Internal(err)
	}
	return nil
}

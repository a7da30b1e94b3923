package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/auth"
	"github.com/raktar-project/raktar/pkg/keys"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

// StoreToken persists a fresh token record keyed by the hash of raw.
// The per-user index record is committed in the same transaction so
// ListTokens and GetToken can never disagree.
func (r *StoreRepository) StoreToken(ctx context.Context, raw []byte, name string, userID uint32) (*types.Token, error) {
	token := types.Token{
		TokenID: uuid.NewString(),
		Name:    name,
		UserID:  userID,
	}
	value, err := json.Marshal(token)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	pk := keys.TokenPK(auth.Hash(raw))
	err = r.store.Transact(ctx,
		storage.Write{PK: pk, SK: keys.TokenSK, Value: value},
		storage.Write{PK: keys.UserTokensPK(userID), SK: pk, Value: value},
	)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	r.logger.Info().Uint32("user_id", userID).Str("token_id", token.TokenID).Msg("stored auth token")
	return &token, nil
}

// GetToken resolves a raw credential; not-found returns nil, nil.
func (r *StoreRepository) GetToken(ctx context.Context, raw []byte) (*types.Token, error) {
	value, err := r.store.Get(ctx, keys.TokenPK(auth.Hash(raw)), keys.TokenSK)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if value == nil {
		return nil, nil
	}

	var token types.Token
	if err := json.Unmarshal(value, &token); err != nil {
		return nil, apperr.Internal(err)
	}
	return &token, nil
}

// ListTokens returns all tokens of a user from the per-user index.
func (r *StoreRepository) ListTokens(ctx context.Context, userID uint32) ([]types.Token, error) {
	records, err := r.store.Query(ctx, keys.UserTokensPK(userID), storage.QueryOptions{})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	tokens := make([]types.Token, 0, len(records))
	for _, rec := range records {
		var token types.Token
		if err := json.Unmarshal(rec.Value, &token); err != nil {
			return nil, apperr.Internal(err)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// DeleteToken removes a token by id. Deleting an unknown id is a no-op.
func (r *StoreRepository) DeleteToken(ctx context.Context, userID uint32, tokenID string) error {
	records, err := r.store.Query(ctx, keys.UserTokensPK(userID), storage.QueryOptions{})
	if err != nil {
		return apperr.Internal(err)
	}

	for _, rec := range records {
		var token types.Token
		if err := json.Unmarshal(rec.Value, &token); err != nil {
			return apperr.Internal(err)
		}
		if token.TokenID != tokenID {
			continue
		}

		// rec.SK is the primary partition key of the token record.
		err = r.store.Transact(ctx,
			storage.Write{PK: rec.SK, SK: keys.TokenSK, Delete: true},
			storage.Write{PK: rec.PK, SK: rec.SK, Delete: true},
		)
		if err != nil {
			return apperr.Internal(err)
		}

		r.logger.Info().Uint32("user_id", userID).Str("token_id", tokenID).Msg("deleted auth token")
		return nil
	}

	return nil
}

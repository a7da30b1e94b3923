package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/keys"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

// MaxCrateListLimit is the hard cap on crate browsing page size.
const MaxCrateListLimit = 20

// GetPackageInfo returns the newline-joined index document for a crate.
func (r *StoreRepository) GetPackageInfo(ctx context.Context, crateName string) (string, error) {
	records, err := r.store.Query(ctx, keys.CratePK(crateName), storage.QueryOptions{
		Prefix: keys.VersionPrefix,
	})
	if err != nil {
		return "", apperr.Internal(err)
	}
	if len(records) == 0 {
		return "", apperr.NonExistentPackageInfo(crateName)
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		var info types.PackageInfo
		if err := json.Unmarshal(rec.Value, &info); err != nil {
			return "", apperr.Internal(fmt.Errorf("failed to decode package info %s/%s: %w", rec.PK, rec.SK, err))
		}
		line, err := json.Marshal(info)
		if err != nil {
			return "", apperr.Internal(err)
		}
		lines = append(lines, string(line))
	}

	return strings.Join(lines, "\n"), nil
}

// StorePackageInfo runs the publish transaction described in the
// package docs: the head pointer is the only mutable record per crate,
// and putting it in the same atomic commit as the first version write
// makes "new crate created iff first version stored" hold.
func (r *StoreRepository) StorePackageInfo(ctx context.Context, crateName, version string, info types.PackageInfo, metadata types.Metadata, user types.AuthenticatedUser) error {
	summary, err := r.GetCrateSummary(ctx, crateName)
	if err != nil {
		return err
	}

	switch {
	case summary == nil:
		// Brand new crate.
		newSummary := types.CrateSummary{
			Name:        crateName,
			Owners:      []uint32{user.ID},
			MaxVersion:  version,
			Description: descriptionOf(metadata),
		}
		if err := r.putVersionWithSummary(ctx, crateName, version, info, newSummary, true); err != nil {
			return err
		}

	default:
		if !summary.IsOwner(user.ID) {
			return apperr.Unauthorized("user is not an owner of this package")
		}

		newer, err := isNewerVersion(version, summary.MaxVersion)
		if err != nil {
			return apperr.Internal(err)
		}

		if newer {
			// Publishing a non-head version is valid; only a higher
			// version moves the head pointer.
			newSummary := types.CrateSummary{
				Name:        crateName,
				Owners:      summary.Owners,
				MaxVersion:  version,
				Description: descriptionOf(metadata),
			}
			if err := r.putVersionWithSummary(ctx, crateName, version, info, newSummary, false); err != nil {
				return err
			}
		} else {
			if err := r.putVersion(ctx, crateName, version, info); err != nil {
				return err
			}
		}
	}

	return r.putMetadata(ctx, metadata)
}

func descriptionOf(metadata types.Metadata) string {
	if metadata.Description == nil {
		return ""
	}
	return *metadata.Description
}

func isNewerVersion(version, maxVersion string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	head, err := semver.NewVersion(maxVersion)
	if err != nil {
		return false, fmt.Errorf("invalid head version %q: %w", maxVersion, err)
	}
	return v.GreaterThan(head), nil
}

// putVersion writes a single version record; the version-level
// uniqueness condition turns a replay into DuplicateCrateVersion.
func (r *StoreRepository) putVersion(ctx context.Context, crateName, version string, info types.PackageInfo) error {
	value, err := json.Marshal(info)
	if err != nil {
		return apperr.Internal(err)
	}

	err = r.store.Put(ctx, storage.Write{
		PK:        keys.CratePK(crateName),
		SK:        keys.VersionSK(version),
		Value:     value,
		Condition: storage.ConditionNotExists,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return apperr.DuplicateCrateVersion(crateName, version)
		}
		return apperr.Internal(err)
	}

	r.logger.Info().Str("crate", crateName).Str("version", version).Msg("persisted package info")
	return nil
}

// putVersionWithSummary commits the version record and the head pointer
// atomically. For a first publish the summary put is conditional on the
// crate not existing yet; for a head update it is a plain overwrite.
func (r *StoreRepository) putVersionWithSummary(ctx context.Context, crateName, version string, info types.PackageInfo, summary types.CrateSummary, isNew bool) error {
	summaryValue, err := json.Marshal(summary)
	if err != nil {
		return apperr.Internal(err)
	}
	infoValue, err := json.Marshal(info)
	if err != nil {
		return apperr.Internal(err)
	}

	summaryCondition := storage.ConditionNone
	if isNew {
		summaryCondition = storage.ConditionNotExists
	}

	err = r.store.Transact(ctx,
		storage.Write{
			PK:        keys.CratesPK,
			SK:        crateName,
			Value:     summaryValue,
			Condition: summaryCondition,
		},
		storage.Write{
			PK:    keys.CratePK(crateName),
			SK:    keys.VersionSK(version),
			Value: infoValue,
		},
	)
	if err != nil {
		if isNew && errors.Is(err, storage.ErrConditionFailed) {
			return apperr.ConflictOnNewCrate(crateName)
		}
		return apperr.Internal(err)
	}

	r.logger.Info().Str("crate", crateName).Str("version", version).Msg("persisted package info")
	return nil
}

func (r *StoreRepository) putMetadata(ctx context.Context, metadata types.Metadata) error {
	value, err := json.Marshal(metadata)
	if err != nil {
		return apperr.Internal(err)
	}

	err = r.store.Put(ctx, storage.Write{
		PK:    keys.CratePK(metadata.Name),
		SK:    keys.MetadataSK(metadata.Vers),
		Value: value,
	})
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SetYanked flips the yanked flag on an existing version. The missing
// record check happens inside the same transaction as the write.
func (r *StoreRepository) SetYanked(ctx context.Context, crateName, version string, yanked bool) error {
	return r.store.Update(ctx, keys.CratePK(crateName), keys.VersionSK(version), func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, apperr.NonExistentCrateVersion(crateName, version)
		}

		var info types.PackageInfo
		if err := json.Unmarshal(old, &info); err != nil {
			return nil, apperr.Internal(err)
		}
		info.Yanked = yanked
		return json.Marshal(info)
	})
}

// ListOwners resolves the crate's owner ids to user records with
// concurrent point reads.
func (r *StoreRepository) ListOwners(ctx context.Context, crateName string) ([]types.User, error) {
	summary, err := r.GetCrateSummary(ctx, crateName)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, apperr.NonExistentPackageInfo(crateName)
	}

	users := make([]types.User, len(summary.Owners))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range summary.Owners {
		i, id := i, id
		g.Go(func() error {
			user, err := r.GetUserByID(gctx, id)
			if err != nil {
				return err
			}
			if user == nil {
				// Owner set references a user record that is gone;
				// surface the id so the caller still sees the owner.
				users[i] = types.User{ID: id}
				return nil
			}
			users[i] = *user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return users, nil
}

// AddOwners unions the given user ids into the crate's owner set. The
// crate must exist; the guard closes the phantom-summary hole an
// unconditional update would leave.
func (r *StoreRepository) AddOwners(ctx context.Context, crateName string, userIDs []uint32) error {
	return r.store.Update(ctx, keys.CratesPK, crateName, func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, apperr.NonExistentCrate(crateName)
		}

		var summary types.CrateSummary
		if err := json.Unmarshal(old, &summary); err != nil {
			return nil, apperr.Internal(err)
		}

		for _, id := range userIDs {
			if !summary.IsOwner(id) {
				summary.Owners = append(summary.Owners, id)
			}
		}
		return json.Marshal(summary)
	})
}

// GetCrateSummary returns the head pointer, or nil when the crate does
// not exist.
func (r *StoreRepository) GetCrateSummary(ctx context.Context, crateName string) (*types.CrateSummary, error) {
	value, err := r.store.Get(ctx, keys.CratesPK, crateName)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if value == nil {
		return nil, nil
	}

	var summary types.CrateSummary
	if err := json.Unmarshal(value, &summary); err != nil {
		return nil, apperr.Internal(err)
	}
	return &summary, nil
}

// GetAllCrateDetails lists crate summaries with an optional name-prefix
// filter.
func (r *StoreRepository) GetAllCrateDetails(ctx context.Context, filter string, limit int) ([]types.CrateSummary, error) {
	if limit <= 0 || limit > MaxCrateListLimit {
		limit = MaxCrateListLimit
	}

	records, err := r.store.Query(ctx, keys.CratesPK, storage.QueryOptions{
		Prefix: filter,
		Limit:  limit,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	summaries := make([]types.CrateSummary, 0, len(records))
	for _, rec := range records {
		var summary types.CrateSummary
		if err := json.Unmarshal(rec.Value, &summary); err != nil {
			return nil, apperr.Internal(err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetCrateMetadata returns the stored publish payload for a version.
func (r *StoreRepository) GetCrateMetadata(ctx context.Context, crateName, version string) (*types.Metadata, error) {
	value, err := r.store.Get(ctx, keys.CratePK(crateName), keys.MetadataSK(version))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if value == nil {
		return nil, nil
	}

	var metadata types.Metadata
	if err := json.Unmarshal(value, &metadata); err != nil {
		return nil, apperr.Internal(err)
	}
	return &metadata, nil
}

// ListCrateVersions returns the published versions in sort-key order.
func (r *StoreRepository) ListCrateVersions(ctx context.Context, crateName string) ([]*semver.Version, error) {
	records, err := r.store.Query(ctx, keys.CratePK(crateName), storage.QueryOptions{
		Prefix: keys.VersionPrefix,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	versions := make([]*semver.Version, 0, len(records))
	for _, rec := range records {
		var item struct {
			Vers string `json:"vers"`
		}
		if err := json.Unmarshal(rec.Value, &item); err != nil {
			return nil, apperr.Internal(err)
		}
		v, err := semver.NewVersion(item.Vers)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("stored version %q is not valid semver: %w", item.Vers, err))
		}
		versions = append(versions, v)
	}
	return versions, nil
}

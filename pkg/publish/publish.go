// Package publish implements the cargo publish pipeline: framed request
// decoding, checksum computation and the dispatch to the crate
// repository and archive store.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	semver "github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/archive"
	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/metrics"
	"github.com/raktar-project/raktar/pkg/repository"
	"github.com/raktar-project/raktar/pkg/types"
)

// Response is the warning payload cargo expects from a successful
// publish. The lists are always present, even when empty.
type Response struct {
	InvalidCategories []string `json:"invalid_categories"`
	InvalidBadges     []string `json:"invalid_badges"`
	Other             []string `json:"other"`
}

var crateNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Publisher wires the pipeline to its two stores.
type Publisher struct {
	crates   repository.CrateRepository
	archives archive.Store
	logger   zerolog.Logger
}

// NewPublisher creates a publish pipeline.
func NewPublisher(crates repository.CrateRepository, archives archive.Store) *Publisher {
	return &Publisher{
		crates:   crates,
		archives: archives,
		logger:   log.WithComponent("publish"),
	}
}

// Publish runs the full pipeline for one upload. The index commit
// happens before the archive put, so a 200 guarantees the version
// resolves; a failure in between leaves an index entry whose download
// 404s until the client re-publishes.
func (p *Publisher) Publish(ctx context.Context, user types.AuthenticatedUser, body []byte) (*Response, error) {
	metadata, archiveBytes, err := ParseRequest(body)
	if err != nil {
		return nil, err
	}

	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}

	checksum := Checksum(archiveBytes)
	info := types.PackageInfoFromMetadata(*metadata, checksum)

	p.logger.Info().
		Str("crate", metadata.Name).
		Str("version", metadata.Vers).
		Uint32("user_id", user.ID).
		Msg("publishing crate")

	if err := p.crates.StorePackageInfo(ctx, metadata.Name, metadata.Vers, info, *metadata, user); err != nil {
		return nil, err
	}
	if err := p.archives.Put(ctx, metadata.Name, metadata.Vers, archiveBytes); err != nil {
		return nil, err
	}

	metrics.PublishesTotal.Inc()
	return &Response{
		InvalidCategories: []string{},
		InvalidBadges:     []string{},
		Other:             []string{},
	}, nil
}

func validateMetadata(metadata *types.Metadata) error {
	if !crateNamePattern.MatchString(metadata.Name) {
		return apperr.BadRequest(fmt.Sprintf("invalid crate name %q", metadata.Name))
	}
	if _, err := semver.StrictNewVersion(metadata.Vers); err != nil {
		return apperr.BadRequest(fmt.Sprintf("invalid version %q", metadata.Vers))
	}
	return nil
}

// ParseRequest decodes the framed publish body:
//
//	u32 metadata_len | metadata JSON | u32 archive_len | archive bytes
//
// with little-endian lengths. Short reads and malformed JSON are
// BadRequest.
func ParseRequest(body []byte) (*types.Metadata, []byte, error) {
	metadataBytes, rest, err := readFrame(body)
	if err != nil {
		return nil, nil, apperr.BadRequest("malformed publish request: " + err.Error())
	}

	var metadata types.Metadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, nil, apperr.BadRequest("malformed publish metadata: " + err.Error())
	}

	archiveBytes, _, err := readFrame(rest)
	if err != nil {
		return nil, nil, apperr.BadRequest("malformed publish request: " + err.Error())
	}

	return &metadata, archiveBytes, nil
}

func readFrame(data []byte) (frame, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint64(len(data)) < uint64(n) {
		return nil, nil, fmt.Errorf("frame of %d bytes exceeds remaining body", n)
	}
	return data[:n], data[n:], nil
}

// Checksum returns the lowercase hex SHA-256 of the archive bytes, the
// value served as cksum in the index.
func Checksum(archiveBytes []byte) string {
	sum := sha256.Sum256(archiveBytes)
	return hex.EncodeToString(sum[:])
}

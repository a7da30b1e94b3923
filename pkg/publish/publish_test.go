package publish

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/archive"
	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/repository"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

func frame(parts ...[]byte) []byte {
	var out []byte
	for _, part := range parts {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(part)))
		out = append(out, length[:]...)
		out = append(out, part...)
	}
	return out
}

func metadataJSON(t *testing.T, name, version string) []byte {
	t.Helper()
	data, err := json.Marshal(types.Metadata{Name: name, Vers: version})
	require.NoError(t, err)
	return data
}

func newTestPublisher(t *testing.T) (*Publisher, *repository.StoreRepository, archive.Store) {
	t.Helper()
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	archives, err := archive.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	repo := repository.New(store)
	return NewPublisher(repo, archives), repo, archives
}

// TestParseRequest tests decoding of the framed publish body
func TestParseRequest(t *testing.T) {
	body := frame(metadataJSON(t, "demo-crate", "1.0.0"), []byte{0, 1, 2, 3, 4})

	metadata, archiveBytes, err := ParseRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "demo-crate", metadata.Name)
	assert.Equal(t, "1.0.0", metadata.Vers)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, archiveBytes)
}

// TestParseRequestMalformed tests the rejection of short and corrupt
// bodies
func TestParseRequestMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: nil},
		{name: "truncated length prefix", body: []byte{1, 0}},
		{name: "frame longer than body", body: []byte{100, 0, 0, 0, 'x'}},
		{name: "missing archive frame", body: frame(metadataJSON(t, "demo-crate", "1.0.0"))},
		{name: "metadata is not JSON", body: frame([]byte("not json"), []byte{1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRequest(tt.body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.BadRequest("")))
		})
	}
}

// TestChecksum tests the archive digest against a known vector
func TestChecksum(t *testing.T) {
	sum := Checksum([]byte{0, 1, 2, 3, 4})
	assert.Equal(t, "08bb5e5d6eaac1049ede0893d30ed022b1a4d9b5b48db414871f51c9cb35283d", sum)
}

// TestPublish tests the full pipeline: index commit, archive write and
// the warning response shape
func TestPublish(t *testing.T) {
	publisher, repo, archives := newTestPublisher(t)
	ctx := context.Background()
	alice := types.AuthenticatedUser{ID: 1}

	body := frame(metadataJSON(t, "demo-crate", "1.0.0"), []byte{0, 1, 2, 3, 4})

	resp, err := publisher.Publish(ctx, alice, body)
	require.NoError(t, err)

	// The warning lists must serialize as arrays, never null.
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"invalid_categories":[],"invalid_badges":[],"other":[]}`, string(data))

	doc, err := repo.GetPackageInfo(ctx, "demo-crate")
	require.NoError(t, err)
	assert.Contains(t, doc, `"cksum":"08bb5e5d6eaac1049ede0893d30ed022b1a4d9b5b48db414871f51c9cb35283d"`)

	stored, err := archives.Get(ctx, "demo-crate", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, stored)
}

// TestPublishValidation tests name and version validation before any
// write happens
func TestPublishValidation(t *testing.T) {
	publisher, repo, _ := newTestPublisher(t)
	ctx := context.Background()
	alice := types.AuthenticatedUser{ID: 1}

	tests := []struct {
		name    string
		crate   string
		version string
	}{
		{name: "uppercase crate name", crate: "Demo", version: "1.0.0"},
		{name: "leading digit", crate: "1demo", version: "1.0.0"},
		{name: "empty crate name", crate: "", version: "1.0.0"},
		{name: "partial version", crate: "demo-crate", version: "1.0"},
		{name: "not a version", crate: "demo-crate", version: "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := frame(metadataJSON(t, tt.crate, tt.version), []byte{1})

			_, err := publisher.Publish(ctx, alice, body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.BadRequest("")))
		})
	}

	// None of the rejected publishes created a crate.
	crates, err := repo.GetAllCrateDetails(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, crates)
}

// TestPublishDuplicate tests that the pipeline surfaces the repository's
// duplicate rejection
func TestPublishDuplicate(t *testing.T) {
	publisher, _, _ := newTestPublisher(t)
	ctx := context.Background()
	alice := types.AuthenticatedUser{ID: 1}

	body := frame(metadataJSON(t, "demo-crate", "1.0.0"), []byte{0, 1, 2, 3, 4})

	_, err := publisher.Publish(ctx, alice, body)
	require.NoError(t, err)

	_, err = publisher.Publish(ctx, alice, body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.DuplicateCrateVersion("demo-crate", "1.0.0")))
}

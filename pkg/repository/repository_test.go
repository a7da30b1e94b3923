package repository

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

func newTestRepository(t *testing.T) *StoreRepository {
	t.Helper()
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store)
}

func strPtr(s string) *string { return &s }

func testMetadata(name, version string) types.Metadata {
	return types.Metadata{
		Name:        name,
		Vers:        version,
		Description: strPtr("a test crate"),
	}
}

func testInfo(name, version string) types.PackageInfo {
	return types.PackageInfoFromMetadata(testMetadata(name, version), "cksum-"+version)
}

// Package archive stores crate archive bytes, keyed by crate name and
// version. Two backends exist: a local filesystem tree for single-node
// deployments and an S3 bucket.
package archive

import (
	"context"
	"fmt"
)

// Store is the object-store contract for crate archives.
type Store interface {
	// Put stores the archive bytes for a version. Re-uploading the same
	// key overwrites; the repository layer guarantees a version is only
	// published once.
	Put(ctx context.Context, crateName, version string, data []byte) error

	// Get returns the archive bytes. A missing archive is a
	// NonExistentCrateVersion error.
	Get(ctx context.Context, crateName, version string) ([]byte, error)
}

const keyPrefix = "crates"

// objectKey derives the storage key for a crate version.
func objectKey(crateName, version string) string {
	return fmt.Sprintf("%s/%s/%s-%s.crate", keyPrefix, crateName, crateName, version)
}

// Package keys derives the partition and sort keys for every record the
// registry stores. The layout is a wire contract with the document
// store and must not change without a migration.
//
//	PackageInfo     CRT#<name>          V#<version>
//	Metadata        CRT#<name>          META#<version>
//	CrateSummary    CRATES              <name>
//	User by login   USERS               LOGIN#<login>
//	User by id      USERS               ID#<id %06d>
//	Token           TOK#<b64(hash)>     TOK
//	Token index     USERTOK#<id %06d>   <token pk>
package keys

import (
	"encoding/base64"
	"fmt"
)

// CratesPK is the partition holding every crate summary.
const CratesPK = "CRATES"

// UsersPK is the partition holding user records.
const UsersPK = "USERS"

// TokenSK is the fixed sort key of token records; the partition key
// carries all the identity.
const TokenSK = "TOK"

// VersionPrefix is the sort-key prefix of per-version index records.
const VersionPrefix = "V#"

// MetadataPrefix is the sort-key prefix of per-version metadata records.
const MetadataPrefix = "META#"

// UserIDPrefix is the sort-key prefix of id-keyed user records.
const UserIDPrefix = "ID#"

// CratePK returns the partition key of a crate's version and metadata
// records.
func CratePK(crateName string) string {
	return "CRT#" + crateName
}

// VersionSK returns the sort key of a per-version index record.
func VersionSK(version string) string {
	return VersionPrefix + version
}

// MetadataSK returns the sort key of a per-version metadata record.
func MetadataSK(version string) string {
	return MetadataPrefix + version
}

// UserLoginSK returns the sort key of the login-keyed user record.
func UserLoginSK(login string) string {
	return "LOGIN#" + login
}

// UserIDSK returns the sort key of the id-keyed user record. Ids are
// zero-padded to six digits so the store's lexicographic order matches
// numeric order.
func UserIDSK(id uint32) string {
	return fmt.Sprintf("ID#%06d", id)
}

// TokenPK returns the partition key of a token record, derived from the
// hash of the raw credential. Plaintext never reaches the store.
func TokenPK(hash []byte) string {
	return "TOK#" + base64.StdEncoding.EncodeToString(hash)
}

// UserTokensPK returns the partition key of the per-user token index.
// This materializes what the table design expresses as the user_tokens
// secondary index.
func UserTokensPK(userID uint32) string {
	return fmt.Sprintf("USERTOK#%06d", userID)
}

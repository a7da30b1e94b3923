/*
Package types defines the domain entities shared across the registry.

The entities mirror the records the registry persists: per-version index
entries (PackageInfo), full publish payloads (Metadata), the per-crate
head pointer (CrateSummary), users and auth tokens. All of them are
plain value types; the authoritative copy lives in the store, in-process
values are ephemeral.
*/
package types

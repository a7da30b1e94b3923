/*
Package repository implements the registry's persistence protocol on top
of the document store.

Three capability interfaces (CrateRepository, TokenRepository,
UserRepository) compose into Repository; StoreRepository implements all
of them against a storage.Store. The repositories own the translation
of store-level conditional failures into registry errors: the same
ErrConditionFailed means DuplicateCrateVersion on a version put,
NonExistentCrateVersion on a yank, and ConflictOnNewCrate on a
first-publish commit, so translation happens at each call site rather
than in a generic wrapper.
*/
package repository

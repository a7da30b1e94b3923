/*
Package api exposes the registry over HTTP.

Two surfaces share one router: the cargo registry protocol
(/config.json, /api/v1/crates/..., and the index lookup paths) guarded
by the bearer-token authenticator, and a JSON web API under /v1 guarded
by the identity-provider JWT authenticator. Handlers translate between
HTTP and the repository/pipeline layers and leave error classification
to apperr.
*/
package api

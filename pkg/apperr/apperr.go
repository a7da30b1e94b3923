// Package apperr defines the registry error taxonomy and its mapping to
// HTTP responses. Store-level conditional failures are translated into
// these kinds at each call site; the same underlying failure maps to
// different kinds depending on the operation.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of registry failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNonExistentPackageInfo
	KindNonExistentCrate
	KindNonExistentCrateVersion
	KindDuplicateCrateVersion
	KindConflictOnNewCrate
	KindUnauthorized
	KindBadRequest
)

// Error is a classified registry error with a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two registry errors by kind, so errors.Is can be used with
// the sentinel constructors below.
func (e *Error) Is(target error) bool {
	var appErr *Error
	if !errors.As(target, &appErr) {
		return false
	}
	return e.Kind == appErr.Kind
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNonExistentPackageInfo, KindNonExistentCrate, KindNonExistentCrateVersion:
		return http.StatusNotFound
	case KindDuplicateCrateVersion, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func NonExistentPackageInfo(crateName string) *Error {
	return &Error{
		Kind:   KindNonExistentPackageInfo,
		Detail: fmt.Sprintf("package info for %s does not exist", crateName),
	}
}

func NonExistentCrate(crateName string) *Error {
	return &Error{
		Kind:   KindNonExistentCrate,
		Detail: fmt.Sprintf("crate %s does not exist", crateName),
	}
}

func NonExistentCrateVersion(crateName, version string) *Error {
	return &Error{
		Kind:   KindNonExistentCrateVersion,
		Detail: fmt.Sprintf("version %s for %s does not exist", version, crateName),
	}
}

func DuplicateCrateVersion(crateName, version string) *Error {
	return &Error{
		Kind:   KindDuplicateCrateVersion,
		Detail: fmt.Sprintf("version %s for %s already exists", version, crateName),
	}
}

// ConflictOnNewCrate is returned when the transactional first-publish
// commit is canceled by a competing publish. Clients may retry.
func ConflictOnNewCrate(crateName string) *Error {
	return &Error{
		Kind:   KindConflictOnNewCrate,
		Detail: fmt.Sprintf("write conflict creating crate %s", crateName),
	}
}

func Unauthorized(detail string) *Error {
	return &Error{Kind: KindUnauthorized, Detail: detail}
}

func BadRequest(detail string) *Error {
	return &Error{Kind: KindBadRequest, Detail: detail}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Detail: "internal server error", Err: err}
}

// errorBody is the wire shape cargo expects for registry errors.
type errorBody struct {
	Errors []errorDetail `json:"errors"`
}

type errorDetail struct {
	Detail string `json:"detail"`
}

// Write renders err as a registry error response. Unclassified errors
// become opaque 500s so internal details never reach the client.
func Write(w http.ResponseWriter, err error) {
	appErr := From(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status())

	detail := appErr.Detail
	body := errorBody{Errors: []errorDetail{{Detail: detail}}}
	_ = json.NewEncoder(w).Encode(body)
}

// From classifies an arbitrary error, wrapping unclassified ones as
// internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Package client contains the client side of the storage backend protocol.
//
// # Overview
//
// The package provides:
//  1. Transport-agnostic contracts (Auth, ObjectStore, Sharing, Groups)
//     bundled in Backend.
//  2. RESTClient, talking to the backend HTTP API with a bearer token taken
//     from a shared Session, mapping status codes to sentinel errors.
//  3. S3Store, an ObjectStore talking to the user's bucket directly.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Failures are exposed as sentinel errors that callers match with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict,
// ErrBadRequest and ErrUnsupported. The server message, when present, is kept
// in the wrapped error text.
//
// All operations accept context.Context and honor cancellation.
package client

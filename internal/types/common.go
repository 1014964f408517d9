package types

import "errors"

// Sentinel errors shared across repositories and services. Repositories map
// driver-level errors (e.g. pgx.ErrNoRows) onto these so handlers can pick
// status codes without knowing about the database.
var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")
var ErrForbidden = errors.New("action forbidden")
var ErrBadRequest = errors.New("invalid request")
var ErrInternalServerError = errors.New("internal server error")

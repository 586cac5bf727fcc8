// Package repository implements the MySQL persistence layer. Each
// repository struct wraps the shared *sql.DB; methods with a Tx suffix
// run inside a caller-supplied transaction so the booking core can
// compose them into one atomic unit of work. Row-not-found conditions
// are translated to booking.ErrNotFound at this boundary so upper
// layers never see sql.ErrNoRows.
package repository

import "errors"

// ErrEmailExists is returned when registration hits the unique email
// constraint. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user lookup yields no rows.
var ErrUserNotFound = errors.New("user not found")

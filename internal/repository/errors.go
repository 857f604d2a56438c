// Package repository provides data access to the reservation store. It
// defines sentinel error values that are reused across repositories so
// that higher layers such as the booking executor and handlers can
// distinguish failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrSeatNotFound is returned when a seat number does not exist in the
// event's seat pool. Handlers translate this into an HTTP 404 response.
var ErrSeatNotFound = errors.New("seat not found")

// ErrSeatUnavailable is returned when a seat exists but is no longer
// AVAILABLE, including the case where a conditional booking update did
// not apply because another writer got there first. Handlers translate
// this into an HTTP 409 response.
var ErrSeatUnavailable = errors.New("seat unavailable")

package model

import "errors"

// ErrNotFound reports that a requested record does not exist.
// Absence is a normal control-flow branch for first-time users and
// users without orders, never a persistence failure.
var ErrNotFound = errors.New("record not found")

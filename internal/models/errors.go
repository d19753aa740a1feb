package models

import "errors"

// ErrNotFound is returned by data sources when a student or record does
// not exist.
var ErrNotFound = errors.New("not found")

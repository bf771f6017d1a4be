package db

import "errors"

// ErrNotFound is returned by every lookup that finds no record.
var ErrNotFound = errors.New("record not found")

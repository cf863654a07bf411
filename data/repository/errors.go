package repository

import "errors"

var (
	ErrAlreadyExists   = errors.New("error already exists")
	ErrNotFound        = errors.New("error not found")
	ErrMalformedLedger = errors.New("malformed ledger payload")
)

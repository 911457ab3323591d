package library

import "errors"

// Lookup and input errors
var (
	ErrNotFound     = errors.New("not found")
	ErrOutOfRange   = errors.New("choice out of range")
	ErrInvalidValue = errors.New("invalid value")
)

// Account errors
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrInvalidCredentials = errors.New("invalid login or password")
)

// Listing errors
var (
	ErrEmptyCatalog    = errors.New("no book available")
	ErrEmptyCollection = errors.New("nothing to display")
)

// Lending errors
var (
	ErrCapacityExceeded = errors.New("active loan limit reached")
	ErrOverdueBlock     = errors.New("a loan is overdue")
	ErrNoCopies         = errors.New("no copy left on the shelf")
	ErrAlreadyRequested = errors.New("book already requested or on loan")
)

// Storage errors
var (
	ErrReadOnly          = errors.New("collection is read-only")
	ErrCorrupt           = errors.New("collection data is corrupt")
	ErrCollectionMissing = errors.New("collection does not exist")
)

package repository

import "errors"

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrOwnerNotFound = errors.New("owning account not found")
)

// ListFilter narrows a listing. Zero value lists everything.
type ListFilter struct {
	Status string
}

package repository

import "errors"

var (
	ErrDuplicate = errors.New("account with identity or account number already exists")
	ErrNotFound  = errors.New("account not found")
)

package domain

import "errors"

var (
	ErrNotFound         = errors.New("ingredient not found")
	ErrInvalidID        = errors.New("invalid ingredient id")
	ErrInvalidRecord    = errors.New("invalid ingredient record")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrCatalogNotLoaded = errors.New("ingredient catalog is not loaded")
)

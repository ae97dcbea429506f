package domain

import "errors"

var (
	ErrInputNotFound    = errors.New("input not found")
	ErrMalformedInput   = errors.New("malformed input")
	ErrStorageRead      = errors.New("storage read failed")
	ErrStorageWrite     = errors.New("storage write failed")
	ErrEmbeddingBackend = errors.New("embedding backend unavailable")
	ErrInvalidArgument  = errors.New("invalid argument")
)

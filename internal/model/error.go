package model

import "errors"

var (
	ErrValidation = errors.New("validation error") // 400
	ErrNotFound   = errors.New("not found")        // 404
	ErrConflict   = errors.New("conflict")         // 409
)

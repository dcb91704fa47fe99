package repository

import (
	"errors"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// Sentinel kinds for job store errors.
var (
	ErrNotFound      = model.ErrJobNotFound
	ErrAlreadyExists = errors.New("job already exists")
)

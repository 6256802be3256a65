package featureflags

import (
	"context"
	"errors"
)

var (
	// ErrFlagNotFound is returned when a feature flag is not found.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrUnknownFlag is returned when an update names a flag that does not exist.
	ErrUnknownFlag = errors.New("unknown feature flag")

	// ErrInvalidValue is returned when an update carries a value of the wrong type.
	ErrInvalidValue = errors.New("invalid feature flag value")
)

// Repository defines the interface for feature flag storage.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)
	// SetFlags creates or updates multiple feature flags atomically.
	SetFlags(ctx context.Context, flags []*Flag) error
}

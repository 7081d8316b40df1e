package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrUpstreamFetch    = errors.New("upstream fetch failed")
	ErrStorage          = errors.New("storage network failure")
	ErrExtractionSchema = errors.New("extraction schema violation")
	ErrExtraction       = errors.New("extraction provider failed")
	ErrGraphWrite       = errors.New("graph write failed")
	ErrJobNotFound      = errors.New("job not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

var kinds = []error{
	ErrInvalidInput,
	ErrTemporary,
	ErrUpstreamFetch,
	ErrStorage,
	ErrExtractionSchema,
	ErrExtraction,
	ErrGraphWrite,
	ErrJobNotFound,
}

// HasKind reports whether err carries any of the sentinel kinds.
func HasKind(err error) bool {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

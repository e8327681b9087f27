package impl

import (
	"errors"
	"fmt"

	"guardian/internal/domain"
	"guardian/internal/store"
)

var (
	ErrEmptyPassword = errors.New("empty password")
	ErrNilStore      = errors.New("nil store")
)

// notFound maps a store miss onto the domain error, keeping other errors.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return err
}

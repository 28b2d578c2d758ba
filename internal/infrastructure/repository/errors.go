package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
)

// storeErr maps a driver failure to the store-unavailable taxonomy. Callers
// upstream key their skip-not-zero behavior off this error type.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainerrors.NewStoreUnavailableError(op + " timed out").WithCause(err)
	}
	return domainerrors.NewStoreUnavailableError(op + " failed").WithCause(err)
}

// isNoRows reports whether err is the pgx no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

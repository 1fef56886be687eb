package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"collabsphere.app/server/internal/apperr"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// wrapDB maps low-level postgres failures onto the error taxonomy: unique
// violations become Conflict, connection-level failures become Unavailable
// (retryable by the gateway), anything else is wrapped as-is. pgx.ErrNoRows
// is handled at the call site because its meaning depends on the query.
func wrapDB(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Wrap(apperr.KindConflict, err, op)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUnavailable, err, op)
	}

	return fmt.Errorf("%s: %w", op, err)
}

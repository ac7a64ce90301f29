package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"bchat/internal/app/errbus"
	"bchat/internal/app/uow"
)

// Mongo server error code for an unauthorized command.
const codeUnauthorized = 13

// transientTransactionLabel marks server errors the driver considers safe to
// retry as a whole transaction.
const transientTransactionLabel = "TransientTransactionError"

// wrapErr translates driver-level failures into the error classes the rest
// of the system understands: authorization failures become the permission
// error the error channel carries, and network/timeout/transient-transaction
// failures become uow.ErrStorageUnavailable so callers can retry. Anything
// else passes through untouched.
func wrapErr(path, operation string, err error) error {
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeUnauthorized {
		return &errbus.PermissionError{Path: path, Operation: operation}
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeUnauthorized {
				return &errbus.PermissionError{Path: path, Operation: operation}
			}
		}
	}
	if isTransient(err) {
		return fmt.Errorf("%s %s: %v: %w", operation, path, err, uow.ErrStorageUnavailable)
	}
	return err
}

func isTransient(err error) bool {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var srvErr mongo.ServerError
	return errors.As(err, &srvErr) && srvErr.HasErrorLabel(transientTransactionLabel)
}

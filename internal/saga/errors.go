package saga

import "errors"

var (
	// ErrDisposed is returned by any operation invoked on a disposed
	// SagaManager.
	ErrDisposed = errors.New("saga: manager is disposed")

	// ErrBusy is returned by Run when PolicyReject is configured and
	// another transaction is already in flight.
	ErrBusy = errors.New("saga: another transaction is in progress")
)

package errorx

import (
	"fmt"
)

// CONFIGURATION ERROR:

// ConfigurationError - invalid construction parameters (negative limits, nil connections, ...).
type ConfigurationError struct {
	message string
	err     error
}

// NewConfigurationError - ConfigurationError constructor.
func NewConfigurationError(msg string, args ...any) *ConfigurationError {
	return &ConfigurationError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewConfigurationErrorWrapper - ConfigurationError constructor for wrapper of another error.
func NewConfigurationErrorWrapper(err error, msg string, args ...any) *ConfigurationError {
	return &ConfigurationError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ce *ConfigurationError) Error() string {
	if ce.err != nil {
		return fmt.Errorf("%s: %w", ce.message, ce.err).Error()
	}

	return ce.message
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.err
}

// EXECUTION ERROR:

// ExecutionError - failure raised by an execute callable or an adapter while running a batch.
// The batcher propagates it unchanged and never swallows it.
type ExecutionError struct {
	message string
	err     error
}

// NewExecutionError - ExecutionError constructor.
func NewExecutionError(msg string, args ...any) *ExecutionError {
	return &ExecutionError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewExecutionErrorWrapper - ExecutionError constructor for wrapper of another error.
func NewExecutionErrorWrapper(err error, msg string, args ...any) *ExecutionError {
	return &ExecutionError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ee *ExecutionError) Error() string {
	if ee.err != nil {
		return fmt.Errorf("%s: %w", ee.message, ee.err).Error()
	}

	return ee.message
}

func (ee *ExecutionError) Unwrap() error {
	return ee.err
}

// CONNECTION CLOSED ERROR:

// ConnectionClosedError - adapter method invoked after Close.
type ConnectionClosedError struct {
	message string
}

// NewConnectionClosedError - ConnectionClosedError constructor.
func NewConnectionClosedError(msg string, args ...any) *ConnectionClosedError {
	return &ConnectionClosedError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (cc *ConnectionClosedError) Error() string {
	return cc.message
}

// TRANSACTION STATE ERROR:

// TransactionStateError - transaction operation invoked in an invalid state
// (commit with none active, nested begin on an adapter that forbids it).
type TransactionStateError struct {
	message string
}

// NewTransactionStateError - TransactionStateError constructor.
func NewTransactionStateError(msg string, args ...any) *TransactionStateError {
	return &TransactionStateError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (ts *TransactionStateError) Error() string {
	return ts.message
}

// DATABASE ERROR:

// DatabaseError - backend-specific failure surfaced by an adapter.
type DatabaseError struct {
	message string
	err     error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of another error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (de *DatabaseError) Error() string {
	if de.err != nil {
		return fmt.Errorf("%s: %w", de.message, de.err).Error()
	}

	return de.message
}

func (de *DatabaseError) Unwrap() error {
	return de.err
}

package cassandra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"
)

// Kind classifies a failure by its semantic meaning rather than by the
// underlying driver's concrete error type, so retry and propagation
// policy can be expressed once in the executor instead of scattered
// across call sites.
type Kind int

const (
	KindUnknown Kind = iota
	KindHostUnavailable
	KindOperationTimeout
	KindReadTimeout
	KindWriteTimeout
	KindUnavailable
	KindQueryExecution
	KindInvalidQuery
	KindUnauthorized
	KindArgumentError
	KindEmergencyMode
	KindReadOnlyMode
	KindConnectionFailure
)

func (k Kind) String() string {
	switch k {
	case KindHostUnavailable:
		return "HostUnavailable"
	case KindOperationTimeout:
		return "OperationTimeout"
	case KindReadTimeout:
		return "ReadTimeout"
	case KindWriteTimeout:
		return "WriteTimeout"
	case KindUnavailable:
		return "Unavailable"
	case KindQueryExecution:
		return "QueryExecution"
	case KindInvalidQuery:
		return "InvalidQuery"
	case KindUnauthorized:
		return "Unauthorized"
	case KindArgumentError:
		return "ArgumentError"
	case KindEmergencyMode:
		return "EmergencyMode"
	case KindReadOnlyMode:
		return "ReadOnlyMode"
	case KindConnectionFailure:
		return "ConnectionFailure"
	default:
		return "Unknown"
	}
}

// ClientError wraps an underlying driver or client error with a
// classified Kind and a Retryable verdict, so callers can branch on
// semantics instead of re-deriving them from the driver's error type.
type ClientError struct {
	Kind      Kind
	Cause     error
	Retryable bool
	Statement string
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// NewClientError classifies err into a ClientError. A nil err returns nil.
func NewClientError(err error, statement string) *ClientError {
	if err == nil {
		return nil
	}

	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}

	kind, retryable := classify(err)
	return &ClientError{
		Kind:      kind,
		Cause:     err,
		Retryable: retryable,
		Statement: statement,
	}
}

func classify(err error) (Kind, bool) {
	switch {
	case errors.Is(err, gocql.ErrNoConnections):
		return KindHostUnavailable, true
	case errors.Is(err, gocql.ErrConnectionClosed):
		return KindHostUnavailable, true
	case errors.Is(err, gocql.ErrTimeoutNoResponse):
		return KindOperationTimeout, true
	case errors.Is(err, context.DeadlineExceeded):
		return KindOperationTimeout, true
	case errors.Is(err, gocql.ErrNoKeyspace), errors.Is(err, gocql.ErrKeyspaceDoesNotExist):
		return KindInvalidQuery, false
	}

	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.(type) {
		case *gocql.RequestErrReadTimeout:
			return KindReadTimeout, true
		case *gocql.RequestErrWriteTimeout:
			return KindWriteTimeout, true
		case *gocql.RequestErrUnavailable:
			return KindUnavailable, true
		case *gocql.RequestErrAlreadyExists, *gocql.RequestErrReadFailure, *gocql.RequestErrWriteFailure:
			return KindQueryExecution, false
		case *gocql.RequestErrUnprepared:
			return KindQueryExecution, true
		}
	}

	if errors.Is(err, gocql.ErrNotFound) {
		return KindQueryExecution, false
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication"):
		return KindUnauthorized, false
	case strings.Contains(msg, "invalid"):
		return KindInvalidQuery, false
	case strings.Contains(msg, "timeout"):
		// Driver execution errors whose message indicates a timeout are
		// conditionally retryable per the QueryExecution policy.
		return KindQueryExecution, true
	default:
		return KindQueryExecution, false
	}
}

// IsRetryable reports whether err should be retried by the executor's
// retry wrapper.
func IsRetryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	kind, retryable := classify(err)
	_ = kind
	return retryable
}

// ErrEmergencyMode is returned immediately by the mode gate when the
// cluster has zero up hosts.
var ErrEmergencyMode = &ClientError{Kind: KindEmergencyMode, Retryable: false}

// ErrReadOnlyMode is returned immediately by the mode gate when a
// write statement is attempted while the cluster is in ReadOnly mode.
var ErrReadOnlyMode = &ClientError{Kind: KindReadOnlyMode, Retryable: false}

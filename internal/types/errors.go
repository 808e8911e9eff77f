package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the persistence layer. Callers classify failures with
// errors.Is; the concrete message carries the wrapped driver error.
var (
	// ErrConfiguration indicates a malformed connection string or invalid
	// application configuration. Reported once at startup, never retried.
	ErrConfiguration = errors.New("invalid database configuration")

	// ErrConnection indicates an open or transport failure. Fatal when the
	// production indicator is active; fallback-eligible otherwise.
	ErrConnection = errors.New("database connection failed")

	// ErrQueryExecution indicates the backend rejected a translated query.
	// Logged, then propagated to the caller unchanged.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrSchemaReconciliation indicates a best-effort schema repair step
	// failed. Logged and swallowed by the connection factory.
	ErrSchemaReconciliation = errors.New("schema reconciliation failed")

	// ErrClosedHandle indicates an operation on a released connection
	// handle. Programmer error, never recoverable.
	ErrClosedHandle = errors.New("operation on closed connection handle")
)

// TranslationError reports a query that could not be rewritten for the
// target backend. It carries both the original text and the rewrite that was
// attempted so operators can see exactly where translation gave up.
type TranslationError struct {
	Original  string
	Attempted string
	Reason    string
}

func (e *TranslationError) Error() string {
	if e.Attempted == "" || e.Attempted == e.Original {
		return fmt.Sprintf("query translation failed: %s: %q", e.Reason, e.Original)
	}
	return fmt.Sprintf("query translation failed: %s: %q (attempted rewrite: %q)", e.Reason, e.Original, e.Attempted)
}

// IsTranslationError reports whether err is (or wraps) a TranslationError.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

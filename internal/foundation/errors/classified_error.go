package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError is a structured error with category, severity, retry strategy and context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

// Category returns the error category.
func (e *ClassifiedError) Category() ErrorCategory { return e.category }

// Severity returns the error severity.
func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }

// RetryStrategy returns the recommended retry strategy.
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }

// Message returns the error message without the cause.
func (e *ClassifiedError) Message() string { return e.message }

// Context returns the error context.
func (e *ClassifiedError) Context() ErrorContext { return e.context }

// Is reports equality on category and message so sentinel-style comparisons work.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// CanRetry reports whether an automatic retry makes sense.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry == RetryBackoff || e.retry == RetryRateLimit
}

// IsFatal reports whether the error should abort the run.
func (e *ClassifiedError) IsFatal() bool { return e.severity == SeverityFatal }

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether any error in the chain belongs to category.
func HasCategory(err error, category ErrorCategory) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal.
func GetCategory(err error) ErrorCategory {
	if classified, ok := AsClassified(err); ok {
		return classified.category
	}
	return CategoryInternal
}

// GetRetryStrategy extracts the retry strategy from an error, or returns RetryNever.
func GetRetryStrategy(err error) RetryStrategy {
	if classified, ok := AsClassified(err); ok {
		return classified.retry
	}
	return RetryNever
}

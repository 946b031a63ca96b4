package errors

// Domain-specific constructors for the storage/temporal/lock error kinds.
// These wrap the same Error shape used throughout the package; the
// code prefix (6xx/7xx/8xx/9xx) determines category, severity, and
// retryability via codes.go.

// NotFoundError reports a missing chunk, version, or manifest entry.
func NotFoundError(message string, cause error) *Error {
	return New(ErrCodeNotFound, message, cause)
}

// CorruptedError reports data that failed a structural sanity check
// (truncated file, unreadable header, and the like).
func CorruptedError(message string, cause error) *Error {
	return New(ErrCodeCorrupted, message, cause)
}

// ChecksumMismatchError reports a hash mismatch between expected and
// actual content.
func ChecksumMismatchError(message string, cause error) *Error {
	return New(ErrCodeChecksumMismatch, message, cause)
}

// IOTransientError reports an I/O failure expected to succeed on retry
// (locked file, momentary permission denial, disk busy).
func IOTransientError(message string, cause error) *Error {
	return New(ErrCodeIOTransient, message, cause)
}

// IOPermanentError reports an I/O failure not expected to clear on
// retry (disk full, path does not exist).
func IOPermanentError(message string, cause error) *Error {
	return New(ErrCodeIOPermanent, message, cause)
}

// InvalidReferenceError reports a malformed or unresolvable database
// reference string.
func InvalidReferenceError(message string, cause error) *Error {
	return New(ErrCodeInvalidReference, message, cause)
}

// InvalidStateError reports an operation attempted from a pipeline
// state that does not permit it.
func InvalidStateError(message string, cause error) *Error {
	return New(ErrCodeInvalidState, message, cause)
}

// VersionUnsupportedError reports a manifest or state-file format
// version newer than this build understands.
func VersionUnsupportedError(message string, cause error) *Error {
	return New(ErrCodeVersionUnsupported, message, cause)
}

// LockHeldError reports that a workspace lock is currently held by
// another live process.
func LockHeldError(message string, cause error) *Error {
	return New(ErrCodeLockHeld, message, cause)
}

// StaleLockError reports a workspace lock held by a process that is no
// longer running, eligible to be stolen.
func StaleLockError(message string, cause error) *Error {
	return New(ErrCodeStaleLock, message, cause)
}

// RateLimitedError reports a retryable backpressure signal from a
// remote chunk server.
func RateLimitedError(message string, cause error) *Error {
	return New(ErrCodeRateLimited, message, cause)
}

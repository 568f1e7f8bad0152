// Package merr defines Mercury's runtime and storage error taxonomy (§7).
// These are sentinel-wrapped errors in the teacher's fmt.Errorf("...: %w")
// idiom, usable with errors.Is/errors.As, rather than the numeric
// diagnostic codes of package diag (those cover lex/parse/semantic
// problems with a source span; merr covers everything else).
package merr

import "errors"

// Storage errors (§7, §4.3).
var (
	// ErrStoreLocked means another process holds the store's LOCK file.
	ErrStoreLocked = errors.New("mercury: store is locked by another process")

	// ErrWalCorrupted means WAL recovery met a frame of unrecognized kind,
	// which it treats as corruption rather than a torn tail. Fatal on open.
	ErrWalCorrupted = errors.New("mercury: write-ahead log is corrupted")

	// ErrCheckpointFailed means a checkpoint could not complete; callers
	// retry with backoff.
	ErrCheckpointFailed = errors.New("mercury: checkpoint failed")

	// ErrIndexCorrupted puts the store into read-only mode.
	ErrIndexCorrupted = errors.New("mercury: index is corrupted")

	// ErrFormatVersionTooNew means meta.json's format_version is newer
	// than this build understands; opening read-write is refused.
	ErrFormatVersionTooNew = errors.New("mercury: store format version is newer than supported")
)

// Runtime/query errors (§7, §4.9).
var (
	// ErrQueryTimeout means a query's wall-clock deadline was exceeded.
	ErrQueryTimeout = errors.New("mercury: query timeout")

	// ErrMemoryLimitExceeded means a query exceeded its memory budget.
	ErrMemoryLimitExceeded = errors.New("mercury: memory limit exceeded")

	// ErrDivisionByZero is only ever surfaced as an error in strict mode;
	// by default division by zero or NaN produces an unbound value per
	// SPARQL semantics.
	ErrDivisionByZero = errors.New("mercury: division by zero")

	// ErrInvalidRegex means a REGEX() filter's pattern failed to compile.
	ErrInvalidRegex = errors.New("mercury: invalid regular expression")

	// ErrCancelled means the caller's cancellation signal fired.
	ErrCancelled = errors.New("mercury: query cancelled")
)

// SERVICE/LOAD errors (§7, §4.9).
var (
	// ErrServiceError wraps a non-SILENT SERVICE clause failure.
	ErrServiceError = errors.New("mercury: SERVICE request failed")

	// ErrLoadError wraps a non-SILENT LOAD failure.
	ErrLoadError = errors.New("mercury: LOAD request failed")
)

// Batch/transaction errors (§4.4).
var (
	// ErrBatchNotActive means add_batched/commit_batch/rollback_batch was
	// called without a preceding begin_batch.
	ErrBatchNotActive = errors.New("mercury: no batch is active")

	// ErrBatchAlreadyActive means begin_batch was called while a batch is
	// already open on this store handle.
	ErrBatchAlreadyActive = errors.New("mercury: a batch is already active")
)

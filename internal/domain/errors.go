package domain

import "errors"

// Error kinds surfaced by the transformation core. Callers distinguish them
// with errors.Is; everything except ErrIncompleteRange aborts the run, since
// downstream daily aggregates cannot flag which inputs were unreliable.
var (
	// ErrSchemaMismatch reports a raw payload whose metric set does not match
	// the configured schema. Fatal.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrSchemaConflict reports two normalized sources that disagree on the
	// metric set. Fatal; cannot be silently reconciled.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrIncompleteRange reports a payload covering fewer hours than the
	// requested interval implies. Recoverable: the normalizer still returns
	// the records it has, and the caller logs the gap.
	ErrIncompleteRange = errors.New("incomplete range")

	// ErrWriteFailure reports a filesystem error while persisting an
	// artifact. Fatal to the current run; retry is the caller's decision.
	ErrWriteFailure = errors.New("write failure")
)

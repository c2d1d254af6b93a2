// SPDX-License-Identifier: MIT

package a3recv

import "errors"

// Sentinel errors for the packet-level and object-level error taxonomy.
// Packet-level errors (MalformedHeader, UnsupportedFec) are recoverable:
// callers drop the packet and increment a telemetry counter. Object-level
// errors (Incomplete, CapacityExhausted) propagate to blocking receive
// calls. Cancelled is terminal for a receive task.
var (
	// ErrMalformedHeader means fewer bytes were present than the declared
	// header length demands, or a declared length is inconsistent.
	ErrMalformedHeader = errors.New("a3recv: malformed header")

	// ErrUnsupportedCodepoint means a version or type field held a value
	// this decoder does not recognize, or a reserved bit was set.
	ErrUnsupportedCodepoint = errors.New("a3recv: unsupported codepoint")

	// ErrUnsupportedFec means no fec.Decoder is registered for the
	// encoding ID a packet declared.
	ErrUnsupportedFec = errors.New("a3recv: unsupported fec encoding")

	// ErrCapacityExhausted means a buffer alloc/resize failed.
	ErrCapacityExhausted = errors.New("a3recv: capacity exhausted")

	// ErrIncomplete means an object reached close_session without every
	// block ready to decode.
	ErrIncomplete = errors.New("a3recv: object incomplete at close")

	// ErrSessionClosed means the owning session closed before the
	// requested object became available.
	ErrSessionClosed = errors.New("a3recv: session closed")

	// ErrSinkClosed means the output sink is shutting down; the joiner
	// stops publishing but reassembly continues.
	ErrSinkClosed = errors.New("a3recv: output sink closed")

	// ErrCancelled means a task was cancelled via context. The receive
	// tasks in package receiver return ctx.Err() rather than this value.
	ErrCancelled = errors.New("a3recv: cancelled")
)

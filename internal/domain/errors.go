package domain

import "errors"

var (
	// ErrPathSafety is returned when a path resolves outside the sandbox root.
	ErrPathSafety = errors.New("path escapes project root")
	// ErrNotFound is returned for a missing file or directory.
	ErrNotFound = errors.New("not found")
	// ErrValue is returned for an argument that cannot be applied, such as replace
	// text that does not occur in the file.
	ErrValue = errors.New("invalid value")
	// ErrTransport is returned when the model is unreachable, errors, or times out.
	ErrTransport = errors.New("model transport failure")
	// ErrMalformedPayload is returned when tool-call arguments stay unparseable
	// after repair.
	ErrMalformedPayload = errors.New("malformed tool-call payload")
	// ErrTurnBudgetExhausted marks a conversation that ran out of turns.
	ErrTurnBudgetExhausted = errors.New("turn budget exhausted")
	// ErrDecisionUnparseable marks a decision answer that could not be used.
	ErrDecisionUnparseable = errors.New("decision answer unparseable")
	// ErrUnknownTool is returned for a tool name outside the schema list.
	ErrUnknownTool = errors.New("unknown tool")
)

package searchfn

import (
	"context"
	"time"
)

// Extension provides hooks into the fetch lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a scope
	Init(scope *Scope) error

	// Wrap intercepts the external call of a fetch
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnFetchStart is called after the store entered its loading state and
	// before the external call is issued. Returning an error aborts the
	// call; the request settles as failed.
	OnFetchStart(op *Operation) error

	// OnSettle is called for settlements that were applied to the store
	OnSettle(scope *Scope, settlement *Settlement)

	// OnDiscard is called for settlements dropped by the freshness check.
	// Settlements dropped by disposal are fully silent; the extension may
	// already be disposed by the time they arrive.
	OnDiscard(scope *Scope, settlement *Settlement)

	// OnStoreUpdate is called after SetParameters or SetResponse commits
	OnStoreUpdate(op *Operation)

	// OnCleanupError handles cleanup failures
	// Returns true if the error was handled, false to use default behavior
	OnCleanupError(err *CleanupError) bool

	// Dispose is called when the scope is disposed
	Dispose(scope *Scope) error
}

// CleanupError contains information about a cleanup failure
type CleanupError struct {
	Err     error
	Context string // "dispose"
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnFetchStart(op *Operation) error {
	return nil
}

func (e *BaseExtension) OnSettle(scope *Scope, settlement *Settlement) {
}

func (e *BaseExtension) OnDiscard(scope *Scope, settlement *Settlement) {
}

func (e *BaseExtension) OnStoreUpdate(op *Operation) {
}

func (e *BaseExtension) OnCleanupError(err *CleanupError) bool {
	return false
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind        OperationKind
	Coordinator AnyCoordinator
	Scope       *Scope
	// Request is set for fetch operations
	Request *Request
	// Params carries the effective call parameters for fetch operations and
	// the updated parameters for set_parameters
	Params any
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpFetch indicates an asynchronous fetch
	OpFetch OperationKind = "fetch"
	// OpSetParameters indicates a synchronous parameter update
	OpSetParameters OperationKind = "set_parameters"
	// OpSetResponse indicates a synchronous response injection
	OpSetResponse OperationKind = "set_response"
)

// Settlement describes how a fetch ended. Extensions receive it through
// OnSettle when the result was applied and through OnDiscard when it was
// dropped.
type Settlement struct {
	Request     *Request
	Coordinator string
	// Params are the effective parameters the call was issued with
	Params any
	// Response is the typed response pointer for accepted settlements,
	// nil otherwise
	Response any
	Err      error
	Duration time.Duration
	Outcome  Outcome
}

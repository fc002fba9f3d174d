package searchfn

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StoreState is a type-erased view of a store's flags for diagnostics
type StoreState struct {
	HasData   bool
	IsLoading bool
	IsError   bool
}

// AnyCoordinator is the type-erased view of a coordinator
type AnyCoordinator interface {
	Name() string
	Scope() *Scope
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)
	StoreState() StoreState

	barrier()
}

// CallFunc is the external search call a coordinator drives
type CallFunc[P, R any] func(ctx context.Context, params P) (*R, error)

// Coordinator issues fetches for one operation and settles them into its
// store. Every fetch mints a freshness token; a settlement is applied only
// when its token is still the latest and the scope is still live, checked
// at settlement time. Everything else is dropped without touching the
// store.
type Coordinator[P, R any] struct {
	scope *Scope
	name  string
	call  CallFunc[P, R]
	store *Store[P, R]
	tags  sync.Map

	// latest is the most recently minted token, guarded by store.mu so
	// that mint order is mutation order
	latest uint64
}

// NewCoordinator creates a coordinator for one operation. The store starts
// with the zero parameters and no data; seed it with SetParameters and
// SetResponse.
func NewCoordinator[P, R any](scope *Scope, name string, call CallFunc[P, R]) *Coordinator[P, R] {
	c := &Coordinator[P, R]{
		scope: scope,
		name:  name,
		call:  call,
		store: newStore[P, R](*new(P), nil),
	}
	scope.register(c)
	return c
}

// Name returns the coordinator's name
func (c *Coordinator[P, R]) Name() string {
	return c.name
}

// Scope returns the owning scope
func (c *Coordinator[P, R]) Scope() *Scope {
	return c.scope
}

// Store returns the coordinator's store
func (c *Coordinator[P, R]) Store() *Store[P, R] {
	return c.store
}

// GetTag retrieves a tag value from the coordinator
func (c *Coordinator[P, R]) GetTag(tag any) (any, bool) {
	return c.tags.Load(tag)
}

// SetTag stores a tag value on the coordinator
func (c *Coordinator[P, R]) SetTag(tag any, val any) {
	c.tags.Store(tag, val)
}

// StoreState returns the store's flags without exposing its types
func (c *Coordinator[P, R]) StoreState() StoreState {
	st := c.store
	st.mu.Lock()
	defer st.mu.Unlock()
	return StoreState{
		HasData:   st.data != nil,
		IsLoading: st.isLoading,
		IsError:   st.isError,
	}
}

// barrier waits out any settlement that is mid-apply
func (c *Coordinator[P, R]) barrier() {
	c.store.mu.Lock()
	//lint:ignore SA2001 lock acquisition is the synchronization
	c.store.mu.Unlock()
}

// SetParameters applies merge to the stored parameters. The update is
// synchronous and touches nothing but the parameters: data and the flags
// stay as they are, and no fetch is issued. After disposal it is a no-op.
func (c *Coordinator[P, R]) SetParameters(merge func(P) P) {
	if merge == nil {
		return
	}

	st := c.store
	st.mu.Lock()
	if c.scope.disposed.Load() {
		st.mu.Unlock()
		return
	}
	st.params = merge(st.params)
	params := st.params
	snap := st.snapshotLocked()
	watchers := st.watchersLocked()
	st.mu.Unlock()

	st.notify(snap, watchers)
	c.scope.notifyStoreUpdate(&Operation{
		Kind:        OpSetParameters,
		Coordinator: c,
		Scope:       c.scope,
		Params:      params,
	})
}

// SetResponse injects a response without fetching, for results obtained
// elsewhere (server-rendered payloads, caches). It sets the data and
// clears the error flag; the loading flag and parameters stay as they
// are. After disposal it is a no-op. The response must be treated as
// read-only once injected.
func (c *Coordinator[P, R]) SetResponse(resp *R) {
	st := c.store
	st.mu.Lock()
	if c.scope.disposed.Load() {
		st.mu.Unlock()
		return
	}
	st.data = resp
	st.isError = false
	snap := st.snapshotLocked()
	watchers := st.watchersLocked()
	st.mu.Unlock()

	st.notify(snap, watchers)
	c.scope.notifyStoreUpdate(&Operation{
		Kind:        OpSetResponse,
		Coordinator: c,
		Scope:       c.scope,
	})
}

// Fetch issues the call with the store's current parameters. The store
// enters its loading state before Fetch returns; the call itself runs on
// its own goroutine and settles later. The returned request settles
// exactly once and never carries an error out of Fetch itself.
func (c *Coordinator[P, R]) Fetch(ctx context.Context) *Request {
	return c.fetch(ctx, nil, nil)
}

// FetchWith issues the call with override applied to the current
// parameters for this call only; the stored parameters do not change.
// onSettled, if non-nil, runs once after an accepted settlement has been
// applied, and never runs for dropped or failed ones. Both arguments may
// be nil.
func (c *Coordinator[P, R]) FetchWith(ctx context.Context, override func(P) P, onSettled func(*R)) *Request {
	return c.fetch(ctx, override, onSettled)
}

func (c *Coordinator[P, R]) fetch(ctx context.Context, override func(P) P, onSettled func(*R)) *Request {
	req := newRequest(c.scope.generateRequestID(), c.name, 0)

	st := c.store
	st.mu.Lock()
	if c.scope.disposed.Load() {
		st.mu.Unlock()
		req.settle(OutcomeDiscarded, nil, 0)
		return req
	}

	c.latest++
	req.token = c.latest

	params := st.params
	if override != nil {
		params = override(params)
	}
	st.isLoading = true
	st.isError = false
	snap := st.snapshotLocked()
	watchers := st.watchersLocked()
	st.mu.Unlock()

	c.scope.history.add(req)
	st.notify(snap, watchers)

	op := &Operation{
		Kind:        OpFetch,
		Coordinator: c,
		Scope:       c.scope,
		Request:     req,
		Params:      params,
	}

	if err := c.scope.notifyFetchStart(op); err != nil {
		c.settle(req, params, nil, err, 0, onSettled)
		return req
	}

	go c.run(ctx, op, req, params, onSettled)
	return req
}

func (c *Coordinator[P, R]) run(ctx context.Context, op *Operation, req *Request, params P, onSettled func(*R)) {
	if ctx == nil {
		ctx = c.scope.baseCtx
	}
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Disposal cancels in-flight calls; the settlement gate stays
	// authoritative for what reaches the store
	stop := context.AfterFunc(c.scope.baseCtx, cancel)
	defer stop()

	start := time.Now()
	result, err := func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in fetch: %v", r)
			}
		}()
		return c.scope.wrapChain(callCtx, op, func() (any, error) {
			resp, callErr := c.call(callCtx, params)
			if callErr != nil {
				return nil, callErr
			}
			return resp, nil
		})
	}()
	duration := time.Since(start)

	var resp *R
	if err == nil {
		resp, err = SafeTypeAssertion[*R](result)
	}

	c.settle(req, params, resp, err, duration, onSettled)
}

// settle applies or drops one finished call. The freshness check and the
// apply happen under the store lock, so a stale settlement can never
// interleave past a fresh one. The request settles last: once Wait
// returns, watchers, extension hooks and onSettled have all run.
func (c *Coordinator[P, R]) settle(req *Request, params P, resp *R, callErr error, duration time.Duration, onSettled func(*R)) {
	st := c.store
	st.mu.Lock()

	if c.scope.disposed.Load() {
		st.mu.Unlock()
		req.settle(OutcomeDiscarded, nil, duration)
		return
	}

	if req.token != c.latest {
		st.mu.Unlock()
		c.scope.notifyDiscard(&Settlement{
			Request:     req,
			Coordinator: c.name,
			Params:      params,
			Err:         callErr,
			Duration:    duration,
			Outcome:     OutcomeSuperseded,
		})
		req.settle(OutcomeSuperseded, nil, duration)
		return
	}

	if callErr != nil {
		st.isLoading = false
		st.isError = true
		snap := st.snapshotLocked()
		watchers := st.watchersLocked()
		st.mu.Unlock()

		fetchErr := &FetchError{Coordinator: c.name, RequestID: req.ID(), Cause: callErr}
		st.notify(snap, watchers)
		c.scope.notifySettle(&Settlement{
			Request:     req,
			Coordinator: c.name,
			Params:      params,
			Err:         fetchErr,
			Duration:    duration,
			Outcome:     OutcomeFailed,
		})
		req.settle(OutcomeFailed, fetchErr, duration)
		return
	}

	st.data = resp
	st.isLoading = false
	st.isError = false
	snap := st.snapshotLocked()
	watchers := st.watchersLocked()
	st.mu.Unlock()

	st.notify(snap, watchers)
	c.scope.notifySettle(&Settlement{
		Request:     req,
		Coordinator: c.name,
		Params:      params,
		Response:    resp,
		Duration:    duration,
		Outcome:     OutcomeAccepted,
	})
	if onSettled != nil {
		onSettled(resp)
	}
	req.settle(OutcomeAccepted, nil, duration)
}

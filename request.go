package searchfn

import (
	"context"
	"sync"
	"time"
)

// Outcome describes how an issued request ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	// OutcomeAccepted means the settlement was applied to the store.
	OutcomeAccepted
	// OutcomeFailed means the call failed and the store was marked with an error.
	OutcomeFailed
	// OutcomeSuperseded means a later request was issued before this one
	// settled; the settlement was dropped without touching the store.
	OutcomeSuperseded
	// OutcomeDiscarded means the scope was disposed; the settlement was
	// dropped without touching the store.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeFailed:
		return "failed"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Request is the handle for a single issued fetch. It settles exactly once;
// the store itself only changes when the outcome is Accepted or Failed.
type Request struct {
	id          string
	coordinator string
	token       uint64
	issuedAt    time.Time

	mu       sync.Mutex
	done     chan struct{}
	outcome  Outcome
	err      error
	duration time.Duration
}

func newRequest(id, coordinator string, token uint64) *Request {
	return &Request{
		id:          id,
		coordinator: coordinator,
		token:       token,
		issuedAt:    time.Now(),
		done:        make(chan struct{}),
	}
}

// ID returns the unique request identifier
func (r *Request) ID() string {
	return r.id
}

// Coordinator returns the name of the coordinator that issued the request
func (r *Request) Coordinator() string {
	return r.coordinator
}

// Token returns the freshness token minted for this request. Higher tokens
// were issued later.
func (r *Request) Token() uint64 {
	return r.token
}

// IssuedAt returns when the request was issued
func (r *Request) IssuedAt() time.Time {
	return r.issuedAt
}

// Done returns a channel that is closed when the request settles
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the settlement outcome, or OutcomePending if the request
// has not settled yet
func (r *Request) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Err returns the failure cause for OutcomeFailed requests, nil otherwise
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Duration returns how long the call ran before settling
func (r *Request) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// Wait blocks until the request settles or the context is cancelled. A
// request settles after its effects are visible: the store mutation, the
// watcher notifications and the extension hooks have all happened by the
// time Wait returns.
func (r *Request) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

// WaitAll blocks until every request settles or the context is cancelled
func WaitAll(ctx context.Context, reqs ...*Request) error {
	for _, req := range reqs {
		if _, err := req.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Request) settle(outcome Outcome, err error, duration time.Duration) {
	r.mu.Lock()
	if r.outcome != OutcomePending {
		r.mu.Unlock()
		return
	}
	r.outcome = outcome
	r.err = err
	r.duration = duration
	r.mu.Unlock()
	close(r.done)
}

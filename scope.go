package searchfn

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Scope owns the lifecycle of a set of coordinators: their extensions,
// registered cleanups, the request history, and the base context that
// in-flight calls are derived from. Disposing the scope cancels the base
// context and permanently silences every store.
type Scope struct {
	mu           sync.RWMutex
	tags         sync.Map
	extensions   []Extension
	coordinators []AnyCoordinator
	cleanupMu    sync.Mutex
	cleanups     []cleanupEntry
	history      *RequestHistory
	baseCtx      context.Context
	cancelBase   context.CancelFunc
	disposed     atomic.Bool
}

type cleanupEntry struct {
	fn    func() error
	order int
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithScopeTag returns an option that sets a tag on a scope
func WithScopeTag[T any](tag Tag[T], val T) ScopeOption {
	return func(s *Scope) {
		tag.SetOnScope(s, val)
	}
}

// WithExtension returns an option that registers an extension to a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithBaseContext returns an option that derives the scope's base context
// from parent instead of context.Background. Pass it before WithExtension
// when extensions read the base context during Init.
func WithBaseContext(parent context.Context) ScopeOption {
	return func(s *Scope) {
		s.cancelBase()
		s.baseCtx, s.cancelBase = context.WithCancel(parent)
	}
}

// WithHistoryLimit returns an option that bounds the request history
func WithHistoryLimit(limit int) ScopeOption {
	return func(s *Scope) {
		s.history = newRequestHistory(limit)
	}
}

// NewScope creates a new scope with optional configuration
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		extensions: []Extension{},
		history:    newRequestHistory(1000),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// UseExtension registers an extension to the scope
func (s *Scope) UseExtension(ext Extension) error {
	if s.disposed.Load() {
		return ErrScopeDisposed
	}

	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

// OnCleanup registers a cleanup function to be called when the scope is
// disposed. Cleanups run in reverse registration order.
func (s *Scope) OnCleanup(fn func() error) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	entry := cleanupEntry{
		fn:    fn,
		order: len(s.cleanups),
	}
	s.cleanups = append(s.cleanups, entry)
}

// Coordinators returns the coordinators registered to this scope, in
// registration order
func (s *Scope) Coordinators() []AnyCoordinator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AnyCoordinator, len(s.coordinators))
	copy(out, s.coordinators)
	return out
}

// History returns the request history for querying
func (s *Scope) History() *RequestHistory {
	return s.history
}

// BaseContext returns the context in-flight calls are derived from. It is
// cancelled when the scope is disposed.
func (s *Scope) BaseContext() context.Context {
	return s.baseCtx
}

// Disposed reports whether Dispose has been called
func (s *Scope) Disposed() bool {
	return s.disposed.Load()
}

// GetTag retrieves a tag value from the scope
func (s *Scope) GetTag(tag any) (any, bool) {
	return s.tags.Load(tag)
}

// SetTag stores a tag value on the scope
func (s *Scope) SetTag(tag any, val any) {
	s.tags.Store(tag, val)
}

func (s *Scope) register(coord AnyCoordinator) {
	s.mu.Lock()
	s.coordinators = append(s.coordinators, coord)
	s.mu.Unlock()
}

func (s *Scope) generateRequestID() string {
	return uuid.NewString()
}

func (s *Scope) snapshotExtensions() []Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	return exts
}

// wrapChain applies extension middleware around next in reverse order
// (last registered wraps first)
func (s *Scope) wrapChain(ctx context.Context, op *Operation, next func() (any, error)) (any, error) {
	exts := s.snapshotExtensions()

	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	return next()
}

func (s *Scope) notifyFetchStart(op *Operation) error {
	for _, ext := range s.snapshotExtensions() {
		if err := ext.OnFetchStart(op); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) notifySettle(settlement *Settlement) {
	exts := s.snapshotExtensions()
	for i := len(exts) - 1; i >= 0; i-- {
		exts[i].OnSettle(s, settlement)
	}
}

func (s *Scope) notifyDiscard(settlement *Settlement) {
	exts := s.snapshotExtensions()
	for i := len(exts) - 1; i >= 0; i-- {
		exts[i].OnDiscard(s, settlement)
	}
}

func (s *Scope) notifyStoreUpdate(op *Operation) {
	exts := s.snapshotExtensions()
	for i := len(exts) - 1; i >= 0; i-- {
		exts[i].OnStoreUpdate(op)
	}
}

func (s *Scope) runCleanups(entries []cleanupEntry, cleanupContext string) {
	exts := s.snapshotExtensions()

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		if err := entry.fn(); err != nil {
			cleanupErr := &CleanupError{
				Err:     err,
				Context: cleanupContext,
			}

			handled := false
			for _, ext := range exts {
				if ext.OnCleanupError(cleanupErr) {
					handled = true
					break
				}
			}
			//nolint:staticcheck
			if !handled {
				// Future: could log or handle unhandled cleanup errors
			}
		}
	}
}

// Dispose tears the scope down: new fetches and late settlements are
// silently dropped, the base context is cancelled, cleanups run in reverse
// registration order and extensions are disposed. Settlements racing with
// Dispose either apply before it returns or are dropped. Dispose is
// idempotent.
func (s *Scope) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.cancelBase()

	// Flush settlements that were applying when the flag flipped
	s.mu.RLock()
	coords := make([]AnyCoordinator, len(s.coordinators))
	copy(coords, s.coordinators)
	s.mu.RUnlock()

	for _, coord := range coords {
		coord.barrier()
	}

	s.cleanupMu.Lock()
	entries := make([]cleanupEntry, len(s.cleanups))
	copy(entries, s.cleanups)
	s.cleanups = nil
	s.cleanupMu.Unlock()

	s.runCleanups(entries, "dispose")

	for _, ext := range s.snapshotExtensions() {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}

	return nil
}

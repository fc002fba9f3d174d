package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m1gwings/treedrawer/tree"

	searchfn "github.com/searchfn/searchfn-go"
)

// DebugExtension tracks settlement outcomes per coordinator and renders the
// scope as a drawn tree.
//
// Usage:
//
//	// Log failures to stderr as text
//	ext := extensions.NewDebugExtension(slog.NewTextHandler(os.Stderr, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewDebugExtension(extensions.NewSilentHandler())
//
// Failed fetches are logged at ERROR level together with the rendered tree.
// Render can also be called directly to inspect a scope at any point.
type DebugExtension struct {
	searchfn.BaseExtension

	logger *slog.Logger

	mu     sync.Mutex
	scope  *searchfn.Scope
	last   map[string]searchfn.Outcome
	counts map[string]int
}

// NewDebugExtension creates a debug extension logging through handler
func NewDebugExtension(handler slog.Handler) *DebugExtension {
	return &DebugExtension{
		BaseExtension: searchfn.NewBaseExtension("debug"),
		logger:        slog.New(handler),
		last:          make(map[string]searchfn.Outcome),
		counts:        make(map[string]int),
	}
}

func (e *DebugExtension) Init(scope *searchfn.Scope) error {
	e.mu.Lock()
	e.scope = scope
	e.mu.Unlock()
	return nil
}

// OnSettle records the outcome and logs failures with the rendered scope
func (e *DebugExtension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.mu.Lock()
	e.last[s.Coordinator] = s.Outcome
	e.counts[s.Coordinator]++
	e.mu.Unlock()

	if s.Outcome != searchfn.OutcomeFailed {
		return
	}

	attrs := []any{
		"coordinator", s.Coordinator,
		"request", s.Request.ID(),
		"scope_tree", e.Render(),
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err.Error())
	}
	e.logger.Error("fetch failed", attrs...)
}

func (e *DebugExtension) OnDiscard(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.mu.Lock()
	e.last[s.Coordinator] = s.Outcome
	e.counts[s.Coordinator]++
	e.mu.Unlock()
}

// Render draws the scope and its coordinators as a box tree. Each coordinator
// node shows the store state, the last settlement outcome and the number of
// settlements observed so far.
func (e *DebugExtension) Render() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scope == nil {
		return "(no scope)"
	}

	coordinators := e.scope.Coordinators()
	root := tree.NewTree(tree.NodeString(fmt.Sprintf("scope (%d coordinators)", len(coordinators))))
	for _, c := range coordinators {
		root.AddChild(tree.NodeString(e.describeLocked(c)))
	}
	return root.String()
}

func (e *DebugExtension) describeLocked(c searchfn.AnyCoordinator) string {
	state := c.StoreState()

	label := c.Name()
	switch {
	case state.IsLoading:
		label += " [loading]"
	case state.IsError:
		label += " [error]"
	case state.HasData:
		label += " [ready]"
	default:
		label += " [idle]"
	}

	if last, ok := e.last[c.Name()]; ok {
		label += fmt.Sprintf(" last=%s settled=%d", last, e.counts[c.Name()])
	}
	return label
}

// SilentHandler is a slog.Handler that discards all log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

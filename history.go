package searchfn

import "sync"

// RequestHistory keeps a bounded, in-memory record of issued requests for
// inspection and debugging. The oldest entries are evicted once the limit
// is exceeded.
type RequestHistory struct {
	mu    sync.RWMutex
	byID  map[string]*Request
	order []string
	limit int
}

func newRequestHistory(limit int) *RequestHistory {
	return &RequestHistory{
		byID:  make(map[string]*Request),
		order: []string{},
		limit: limit,
	}
}

func (h *RequestHistory) add(req *Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.byID[req.ID()] = req
	h.order = append(h.order, req.ID())

	for len(h.order) > h.limit {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.byID, oldest)
	}
}

// Get returns the request with the given ID, or nil if it was never recorded
// or has been evicted
func (h *RequestHistory) Get(id string) *Request {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byID[id]
}

// Recent returns up to n requests, newest first
func (h *RequestHistory) Recent(n int) []*Request {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.order) {
		n = len(h.order)
	}

	result := make([]*Request, 0, n)
	for i := len(h.order) - 1; i >= 0 && len(result) < n; i-- {
		if req := h.byID[h.order[i]]; req != nil {
			result = append(result, req)
		}
	}
	return result
}

// Filter returns all recorded requests matching the predicate
func (h *RequestHistory) Filter(predicate func(*Request) bool) []*Request {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []*Request
	for _, id := range h.order {
		if req := h.byID[id]; req != nil && predicate(req) {
			result = append(result, req)
		}
	}
	return result
}

// Len returns the number of requests currently recorded
func (h *RequestHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

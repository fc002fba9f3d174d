package respcache

import (
	searchfn "github.com/searchfn/searchfn-go"
)

// Extension writes accepted settlements through to a Cache. Failed,
// superseded and discarded settlements never touch the cache.
type Extension struct {
	searchfn.BaseExtension
	cache *Cache

	// nil means cache every coordinator
	only map[string]struct{}
}

// NewExtension creates a caching extension. With no coordinator names every
// accepted settlement is cached; otherwise only the named ones are.
func NewExtension(cache *Cache, coordinators ...string) *Extension {
	var only map[string]struct{}
	if len(coordinators) > 0 {
		only = make(map[string]struct{}, len(coordinators))
		for _, name := range coordinators {
			only[name] = struct{}{}
		}
	}
	return &Extension{
		BaseExtension: searchfn.NewBaseExtension("respcache"),
		cache:         cache,
		only:          only,
	}
}

func (e *Extension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	if s.Outcome != searchfn.OutcomeAccepted || s.Response == nil {
		return
	}
	if e.only != nil {
		if _, ok := e.only[s.Coordinator]; !ok {
			return
		}
	}
	// A full queue or closed cache only costs a future cache hit
	_ = e.cache.Put(s.Coordinator, s.Params, s.Response)
}

// Warm seeds a coordinator from the cache using its current parameters.
// On a hit the response is injected with SetResponse, leaving the loading
// flag untouched and clearing the error flag. It reports whether the store
// was seeded.
func Warm[P, R any](cache *Cache, coord *searchfn.Coordinator[P, R]) (bool, error) {
	var resp R
	hit, err := cache.Get(coord.Name(), coord.Store().Parameters(), &resp)
	if err != nil || !hit {
		return false, err
	}
	coord.SetResponse(&resp)
	return true, nil
}

package requestlog

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	searchfn "github.com/searchfn/searchfn-go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Extension journals every settlement, applied or dropped. The journal's
// lifetime belongs to the caller; closing the scope does not close it.
type Extension struct {
	searchfn.BaseExtension
	journal *Journal
}

// NewExtension creates a journaling extension writing to journal
func NewExtension(journal *Journal) *Extension {
	return &Extension{
		BaseExtension: searchfn.NewBaseExtension("requestlog"),
		journal:       journal,
	}
}

func (e *Extension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.journal.Append(toRecord(s))
}

func (e *Extension) OnDiscard(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.journal.Append(toRecord(s))
}

func toRecord(s *searchfn.Settlement) Record {
	rec := Record{
		RequestID:   s.Request.ID(),
		Coordinator: s.Coordinator,
		Outcome:     s.Outcome.String(),
		DurationMS:  s.Duration.Milliseconds(),
		IssuedAt:    s.Request.IssuedAt(),
		SettledAt:   time.Now(),
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
	}
	if s.Params != nil {
		if params, err := jsonAPI.Marshal(s.Params); err == nil {
			rec.Params = string(params)
		}
	}
	return rec
}

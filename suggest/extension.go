package suggest

import (
	searchfn "github.com/searchfn/searchfn-go"
)

// Extension feeds a Suggester from accepted query settlements: the issued
// query, the backend's spelling suggestion and the result titles all enter
// the vocabulary.
type Extension struct {
	searchfn.BaseExtension
	suggester *Suggester
}

// NewExtension creates a vocabulary-learning extension
func NewExtension(suggester *Suggester) *Extension {
	return &Extension{
		BaseExtension: searchfn.NewBaseExtension("suggest"),
		suggester:     suggester,
	}
}

func (e *Extension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	if s.Outcome != searchfn.OutcomeAccepted {
		return
	}
	resp, ok := s.Response.(*searchfn.QueryResponse)
	if !ok || resp == nil {
		return
	}

	if params, ok := s.Params.(searchfn.QueryParams); ok {
		e.suggester.Learn(Tokenize(params.NaturalLanguageQuery)...)
	}
	if resp.SuggestedQuery != "" {
		e.suggester.Learn(Tokenize(resp.SuggestedQuery)...)
	}
	for _, result := range resp.Results {
		e.suggester.Learn(Tokenize(result.Title)...)
	}
}

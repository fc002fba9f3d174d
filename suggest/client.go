package suggest

import (
	"context"

	searchfn "github.com/searchfn/searchfn-go"
)

const defaultCompletionCount = 5

// CompletionClient adds the autocompletion operation to a query-only search
// client, answering from a Suggester's vocabulary instead of the backend
type CompletionClient struct {
	searchfn.Querier
	suggester *Suggester
}

// WithCompletions wraps inner so that sessions probing the client see
// autocompletion support
func WithCompletions(inner searchfn.Querier, suggester *Suggester) *CompletionClient {
	return &CompletionClient{
		Querier:   inner,
		suggester: suggester,
	}
}

var _ searchfn.Autocompleter = (*CompletionClient)(nil)

func (c *CompletionClient) GetAutocompletion(ctx context.Context, params searchfn.AutocompletionParams) (*searchfn.Completions, error) {
	count := int(params.Count)
	if count <= 0 {
		count = defaultCompletionCount
	}
	return &searchfn.Completions{
		Completions: c.suggester.Complete(params.Prefix, count),
	}, nil
}

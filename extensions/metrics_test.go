package extensions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	searchfn "github.com/searchfn/searchfn-go"
)

func TestMetricsExtension_CountsSettlements(t *testing.T) {
	reg := prometheus.NewRegistry()
	ext := NewMetricsExtension(reg)
	scope := searchfn.NewScope(searchfn.WithExtension(ext))
	defer scope.Dispose()

	var shouldFail atomic.Bool
	coord := searchfn.NewCoordinator(scope, "search", func(ctx context.Context, params searchfn.QueryParams) (*searchfn.QueryResponse, error) {
		if shouldFail.Load() {
			return nil, errors.New("upstream gone")
		}
		return &searchfn.QueryResponse{}, nil
	})

	req := coord.Fetch(context.Background())
	_, err := req.Wait(context.Background())
	require.NoError(t, err)

	shouldFail.Store(true)
	req = coord.Fetch(context.Background())
	_, err = req.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(ext.fetchesStarted.WithLabelValues("search")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ext.settlements.WithLabelValues("search", "accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ext.settlements.WithLabelValues("search", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(ext.fetchDuration, "searchfn_fetch_duration_seconds"))
}

func TestMetricsExtension_SupersededCountedOnDiscard(t *testing.T) {
	reg := prometheus.NewRegistry()
	ext := NewMetricsExtension(reg)
	scope := searchfn.NewScope(searchfn.WithExtension(ext))
	defer scope.Dispose()

	release := make(chan struct{})
	coord := searchfn.NewCoordinator(scope, "search", func(ctx context.Context, params searchfn.QueryParams) (*searchfn.QueryResponse, error) {
		if params.NaturalLanguageQuery == "blocked" {
			<-release
		}
		return &searchfn.QueryResponse{}, nil
	})

	coord.SetParameters(func(p searchfn.QueryParams) searchfn.QueryParams {
		p.NaturalLanguageQuery = "blocked"
		return p
	})
	first := coord.Fetch(context.Background())
	coord.SetParameters(func(p searchfn.QueryParams) searchfn.QueryParams {
		p.NaturalLanguageQuery = "instant"
		return p
	})
	second := coord.Fetch(context.Background())

	_, err := second.Wait(context.Background())
	require.NoError(t, err)
	close(release)
	_, err = first.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(ext.settlements.WithLabelValues("search", "superseded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ext.settlements.WithLabelValues("search", "accepted")))
}

func TestMetricsExtension_DisposeUnregisters(t *testing.T) {
	reg := prometheus.NewRegistry()

	scope := searchfn.NewScope(searchfn.WithExtension(NewMetricsExtension(reg)))

	// A second extension against the same registry collides
	err := scope.UseExtension(NewMetricsExtension(reg))
	require.Error(t, err)

	require.NoError(t, scope.Dispose())

	// After dispose the registry is free again
	fresh := searchfn.NewScope(searchfn.WithExtension(NewMetricsExtension(reg)))
	require.NoError(t, fresh.Dispose())
}

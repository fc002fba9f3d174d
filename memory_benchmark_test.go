package searchfn

import (
	"context"
	"fmt"
	"runtime"
	"testing"
)

// memoryMetrics captures memory statistics for benchmarking
type memoryMetrics struct {
	Allocs     uint64
	TotalAlloc uint64
}

// readMemoryMetrics captures current memory statistics
func readMemoryMetrics() memoryMetrics {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memoryMetrics{
		Allocs:     m.Mallocs,
		TotalAlloc: m.TotalAlloc,
	}
}

// newBenchCoordinator creates a coordinator whose call answers immediately
func newBenchCoordinator(scope *Scope, name string) *Coordinator[QueryParams, QueryResponse] {
	resp := &QueryResponse{MatchingResults: 1}
	return NewCoordinator(scope, name, func(ctx context.Context, params QueryParams) (*QueryResponse, error) {
		return resp, nil
	})
}

// BenchmarkStoreSnapshot measures allocation on the concurrent read path
func BenchmarkStoreSnapshot(b *testing.B) {
	scope := NewScope()
	defer scope.Dispose()

	coord := newBenchCoordinator(scope, "search")
	<-coord.Fetch(context.Background()).Done()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			snap := coord.Store().Snapshot()
			if snap.Data == nil {
				b.Fatal("expected data in the store")
			}
		}
	})
}

// BenchmarkExtensionChain measures the overhead of routing a fetch through
// a stack of pass-through extensions
func BenchmarkExtensionChain(b *testing.B) {
	scope := NewScope()
	defer scope.Dispose()

	for i := 0; i < 10; i++ {
		if err := scope.UseExtension(&BaseExtension{}); err != nil {
			b.Fatalf("UseExtension failed: %v", err)
		}
	}
	coord := newBenchCoordinator(scope, "search")
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		<-coord.Fetch(ctx).Done()
	}
}

// BenchmarkWatcherFanout measures settlement delivery to subscribed watchers
func BenchmarkWatcherFanout(b *testing.B) {
	scope := NewScope()
	defer scope.Dispose()

	coord := newBenchCoordinator(scope, "search")
	for i := 0; i < 10; i++ {
		coord.Store().Subscribe(func(snap Snapshot[QueryParams, QueryResponse]) {})
	}
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		<-coord.Fetch(ctx).Done()
	}
}

// BenchmarkConcurrentCoordinators measures independent coordinators
// fetching in parallel on one scope
func BenchmarkConcurrentCoordinators(b *testing.B) {
	scope := NewScope()
	defer scope.Dispose()

	coords := make([]*Coordinator[QueryParams, QueryResponse], 10)
	for i := range coords {
		coords[i] = newBenchCoordinator(scope, fmt.Sprintf("coordinator-%d", i))
	}
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for _, coord := range coords {
				<-coord.Fetch(ctx).Done()
			}
		}
	})
}

// BenchmarkMemoryUsageProfile provides detailed memory usage analysis
func BenchmarkMemoryUsageProfile(b *testing.B) {
	ctx := context.Background()

	scenarios := []struct {
		name string
		fn   func(scope *Scope) error
	}{
		{
			name: "SingleFetch",
			fn: func(scope *Scope) error {
				coord := newBenchCoordinator(scope, "search")
				_, err := coord.Fetch(ctx).Wait(ctx)
				return err
			},
		},
		{
			name: "SupersededBurst",
			fn: func(scope *Scope) error {
				coord := newBenchCoordinator(scope, "search")
				reqs := make([]*Request, 8)
				for i := range reqs {
					reqs[i] = coord.Fetch(ctx)
				}
				return WaitAll(ctx, reqs...)
			},
		},
		{
			name: "ParameterMerges",
			fn: func(scope *Scope) error {
				coord := newBenchCoordinator(scope, "search")
				for i := 0; i < 50; i++ {
					offset := int64(i)
					coord.SetParameters(func(p QueryParams) QueryParams {
						p.Offset = offset
						return p
					})
				}
				return nil
			},
		},
		{
			name: "SessionPrime",
			fn: func(scope *Scope) error {
				session, err := NewSession(scope, &fullClient{}, SessionConfig{ProjectID: "bench"})
				if err != nil {
					return err
				}
				return WaitAll(ctx, session.Prime(ctx)...)
			},
		},
	}

	for _, scenario := range scenarios {
		b.Run(scenario.name, func(b *testing.B) {
			b.StopTimer()
			initial := readMemoryMetrics()

			b.StartTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				scope := NewScope()

				if err := scenario.fn(scope); err != nil {
					b.Fatalf("scenario failed: %v", err)
				}

				scope.Dispose()
			}

			b.StopTimer()
			final := readMemoryMetrics()

			// Report memory usage statistics
			b.ReportMetric(float64(final.TotalAlloc-initial.TotalAlloc)/float64(b.N), "bytes/op_total")
			b.ReportMetric(float64(final.Allocs-initial.Allocs)/float64(b.N), "allocs/op_total")
		})
	}
}

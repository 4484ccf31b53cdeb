package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// PrewarmError lists every target whose cache could not be built.
type PrewarmError struct {
	Failures map[string]error
}

func (e *PrewarmError) Error() string {
	names := e.Names()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Failures[name])
	}
	return fmt.Sprintf("metadata prewarm failed for %d queries (%s): %s",
		len(names), strings.Join(names, ", "), strings.Join(parts, "; "))
}

// Names returns the failed target names in sorted order.
func (e *PrewarmError) Names() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prewarm builds caches for all targets using up to concurrency workers.
// It does not stop at the first failure: caches for successful targets are
// returned together with a *PrewarmError naming every failed target.
func (b *Builder) Prewarm(ctx context.Context, targets []Target, concurrency int) (map[string]*Cache, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		caches   = make(map[string]*Cache, len(targets))
		failures = make(map[string]error)
	)

	p := pool.New().WithMaxGoroutines(concurrency)
	for _, target := range targets {
		p.Go(func() {
			cache, err := b.Build(ctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[target.Name] = err
				return
			}
			caches[target.Name] = cache
		})
	}
	p.Wait()

	b.logger.Info("Metadata prewarm complete",
		zap.Int("built", len(caches)),
		zap.Int("failed", len(failures)))

	if len(failures) > 0 {
		return caches, &PrewarmError{Failures: failures}
	}
	return caches, nil
}

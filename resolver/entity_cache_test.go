package resolver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/rdf"
)

const ex = "http://example.org/"

func literal(s string) rdf.Term { return rdf.NewLiteral(s, "") }

func triple(s, p string, o rdf.Term) rdf.Triple {
	return rdf.Triple{Subject: rdf.NodeFromID(s), Predicate: p, Object: o}
}

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	inner agora.Loader
	delay time.Duration
}

func newCountingLoader(inner agora.Loader) *countingLoader {
	return &countingLoader{calls: make(map[string]int), inner: inner}
}

func (c *countingLoader) Load(ctx context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
	c.mu.Lock()
	c.calls[id]++
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.inner.Load(ctx, id)
}

func (c *countingLoader) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func graphLoader(g *rdf.Graph) agora.Loader {
	return agora.LoaderFunc(func(_ context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
		return g.Describe(rdf.NodeFromID(id)), nil, nil
	})
}

func TestLockTableSerializesPerKey(t *testing.T) {
	var table LockTable
	var inside, maxInside atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.Lock("a")
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 1, table.Len())
}

func TestLockTableKeysAreIndependent(t *testing.T) {
	var table LockTable
	unlockA := table.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := table.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("locking b waited on a")
	}
}

func TestEntityCacheFetchOnce(t *testing.T) {
	g := rdf.NewGraph()
	for i := 0; i < 10; i++ {
		g.Add(triple(ex+"A", fmt.Sprintf("%sp%d", ex, i), literal(fmt.Sprint(i))))
	}
	loader := newCountingLoader(graphLoader(g))
	loader.delay = 10 * time.Millisecond

	cache := NewEntityCache(nil, nil)

	var wg sync.WaitGroup
	results := make([][]rdf.Term, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Objects(context.Background(), loader, ex+"A", nil, fmt.Sprintf("%sp%d", ex, i%10))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, loader.count(ex+"A"))
	for i, values := range results {
		require.Len(t, values, 1)
		assert.Equal(t, fmt.Sprint(i%10), values[0].Value)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestEntityCacheCopyOut(t *testing.T) {
	g := rdf.NewGraph(
		triple(ex+"A", ex+"name", literal("first")),
		triple(ex+"A", ex+"name", literal("second")),
	)
	cache := NewEntityCache(nil, nil)

	values := cache.Objects(context.Background(), graphLoader(g), ex+"A", nil, ex+"name")
	require.Len(t, values, 2)
	values[0] = literal("mutated")
	_ = append(values[:1], literal("appended"))

	again := cache.Objects(context.Background(), graphLoader(g), ex+"A", nil, ex+"name")
	assert.Equal(t, []rdf.Term{literal("first"), literal("second")}, again)
}

func TestEntityCacheLoadFailureDegradesToEmpty(t *testing.T) {
	var calls atomic.Int32
	failing := agora.LoaderFunc(func(context.Context, string) (*rdf.Graph, agora.Metadata, error) {
		calls.Add(1)
		return nil, nil, fmt.Errorf("connection refused")
	})
	cache := NewEntityCache(nil, nil)

	assert.Empty(t, cache.Objects(context.Background(), failing, ex+"A", nil, ex+"name"))
	assert.Empty(t, cache.Objects(context.Background(), failing, ex+"A", nil, ex+"age"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEntityCacheWithoutLoader(t *testing.T) {
	cache := NewEntityCache(nil, nil)
	assert.Empty(t, cache.Objects(context.Background(), nil, ex+"A", nil, ex+"name"))
	assert.NotNil(t, cache.Fragment(ex+"A"))
}

func TestEntityCacheLoaderPanicDegradesToEmpty(t *testing.T) {
	panicking := agora.LoaderFunc(func(context.Context, string) (*rdf.Graph, agora.Metadata, error) {
		panic("boom")
	})
	cache := NewEntityCache(nil, nil)
	assert.Empty(t, cache.Objects(context.Background(), panicking, ex+"A", nil, ex+"name"))
}

func TestEntityCacheBlankNodeUsesAmbient(t *testing.T) {
	ambient := rdf.NewGraph(
		triple(ex+"A", ex+"address", rdf.NewBlank("_:addr")),
		triple("_:addr", ex+"street", literal("Main Street")),
	)
	loader := newCountingLoader(graphLoader(rdf.NewGraph()))
	cache := NewEntityCache(nil, nil)

	values := cache.Objects(context.Background(), loader, "_:addr", ambient, ex+"street")
	require.Len(t, values, 1)
	assert.Equal(t, "Main Street", values[0].Value)
	assert.Zero(t, loader.count("_:addr"))
}

func TestEntityCacheMergesAmbientAndLoaded(t *testing.T) {
	ambient := rdf.NewGraph(triple(ex+"A", rdf.RDFType, rdf.NewIRI(ex+"Person")))
	remote := rdf.NewGraph(triple(ex+"A", ex+"name", literal("A")))
	cache := NewEntityCache(nil, nil)

	assert.Len(t, cache.Objects(context.Background(), graphLoader(remote), ex+"A", ambient, rdf.RDFType), 1)
	assert.Len(t, cache.Objects(context.Background(), graphLoader(remote), ex+"A", ambient, ex+"name"), 1)
	assert.Equal(t, 2, cache.Fragment(ex+"A").Len())
}

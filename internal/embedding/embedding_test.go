package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	mu         sync.Mutex
	dim        int
	calls      int
	batchCalls [][]string
	failTimes  int
	failErr    error
	delay      time.Duration
	inFlight   atomic.Int32
	maxFlight  atomic.Int32
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v
}

func (f *fakeEmbedder) enter() error {
	n := f.inFlight.Add(1)
	for {
		cur := f.maxFlight.Load()
		if n <= cur || f.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.inFlight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failTimes > 0 {
		f.failTimes--
		return f.failErr
	}
	return nil
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), texts...))
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newCacheCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func TestCachedEmbedder_HitAfterMiss(t *testing.T) {
	inner := &fakeEmbedder{dim: 3}
	counter := newCacheCounter()
	c := NewCachedEmbedder(inner, NewMemoryStore(time.Hour, time.Hour), CacheConfig{Provider: "openai", Model: "m"}, counter, zap.NewNop())

	ctx := context.Background()
	first, err := c.GenerateEmbedding(ctx, "CMU block")
	require.NoError(t, err)
	second, err := c.GenerateEmbedding(ctx, "  cmu BLOCK ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("miss")))
}

func TestCachedEmbedder_KeyDependsOnProviderModelAndDimension(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Hour)
	a := NewCachedEmbedder(&fakeEmbedder{dim: 3}, store, CacheConfig{Provider: "openai", Model: "small"}, nil, nil)
	b := NewCachedEmbedder(&fakeEmbedder{dim: 3}, store, CacheConfig{Provider: "openai", Model: "large"}, nil, nil)
	c := NewCachedEmbedder(&fakeEmbedder{dim: 4}, store, CacheConfig{Provider: "openai", Model: "small"}, nil, nil)
	d := NewCachedEmbedder(&fakeEmbedder{dim: 3}, store, CacheConfig{Provider: "local", Model: "small"}, nil, nil)

	keys := map[string]struct{}{}
	for _, e := range []*CachedEmbedder{a, b, c, d} {
		keys[e.CacheKey("brick")] = struct{}{}
	}
	assert.Len(t, keys, 4)
	assert.Equal(t, a.CacheKey("Brick "), a.CacheKey("brick"))
}

func TestCachedEmbedder_BatchOnlySendsMisses(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	c := NewCachedEmbedder(inner, NewMemoryStore(time.Hour, time.Hour), CacheConfig{Provider: "p", Model: "m"}, nil, nil)
	ctx := context.Background()

	_, err := c.GenerateEmbedding(ctx, "b")
	require.NoError(t, err)

	out, err := c.GenerateEmbeddings(ctx, []string{"a", "b", "ccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, inner.vector("a"), out[0])
	assert.Equal(t, inner.vector("b"), out[1])
	assert.Equal(t, inner.vector("ccc"), out[2])
	require.Len(t, inner.batchCalls, 1)
	assert.Equal(t, []string{"a", "ccc"}, inner.batchCalls[0])

	_, err = c.GenerateEmbeddings(ctx, []string{"a", "ccc"})
	require.NoError(t, err)
	assert.Len(t, inner.batchCalls, 1)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestCachedEmbedder_StoreFailureFallsThrough(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	c := NewCachedEmbedder(inner, brokenStore{}, CacheConfig{}, nil, nil)

	vec, err := c.GenerateEmbedding(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, inner.vector("x"), vec)
}

func TestCachedEmbedder_ProviderErrorWrapped(t *testing.T) {
	inner := &fakeEmbedder{dim: 2, failTimes: 1, failErr: ErrRateLimited}
	c := NewCachedEmbedder(inner, NewMemoryStore(time.Hour, time.Hour), CacheConfig{}, nil, nil)

	_, err := c.GenerateEmbedding(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	back, err := bytesToVector(vectorToBytes(v))
	require.NoError(t, err)
	assert.Equal(t, v, back)

	_, err = bytesToVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(40 * time.Millisecond)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func fastGate(concurrency, batchSize int) GateConfig {
	return GateConfig{
		Concurrency:     concurrency,
		BatchSize:       batchSize,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestGatedEmbedder_RetriesRateLimit(t *testing.T) {
	inner := &fakeEmbedder{dim: 2, failTimes: 2, failErr: fmt.Errorf("429: %w", ErrRateLimited)}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_requests_total"}, []string{"provider", "status"})
	g := NewGatedEmbedder(inner, fastGate(2, 10), "openai", requests, nil)

	vec, err := g.GenerateEmbedding(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, inner.vector("abc"), vec)
	assert.Equal(t, 3, inner.callCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(requests.WithLabelValues("openai", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(requests.WithLabelValues("openai", "ok")))
}

func TestGatedEmbedder_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &fakeEmbedder{dim: 2, failTimes: 100, failErr: ErrRateLimited}
	g := NewGatedEmbedder(inner, fastGate(1, 10), "openai", nil, nil)

	_, err := g.GenerateEmbedding(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 4, inner.callCount())
}

func TestGatedEmbedder_DoesNotRetryOtherErrors(t *testing.T) {
	inner := &fakeEmbedder{dim: 2, failTimes: 1, failErr: errors.New("invalid api key")}
	g := NewGatedEmbedder(inner, fastGate(1, 10), "openai", nil, nil)

	_, err := g.GenerateEmbedding(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, "invalid api key", err.Error())
	assert.Equal(t, 1, inner.callCount())
}

func TestGatedEmbedder_SplitsBatchesAndKeepsOrder(t *testing.T) {
	inner := &fakeEmbedder{dim: 1}
	g := NewGatedEmbedder(inner, fastGate(2, 2), "local", nil, nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := g.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, len(texts))
	for i, text := range texts {
		assert.Equal(t, inner.vector(text), out[i])
	}
	assert.Len(t, inner.batchCalls, 3)
}

func TestGatedEmbedder_BoundsConcurrency(t *testing.T) {
	inner := &fakeEmbedder{dim: 1, delay: 10 * time.Millisecond}
	g := NewGatedEmbedder(inner, fastGate(2, 1), "local", nil, nil)

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	_, err := g.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	assert.LessOrEqual(t, inner.maxFlight.Load(), int32(2))
	assert.Equal(t, 8, inner.callCount())
}

func TestGatedEmbedder_Cancelled(t *testing.T) {
	inner := &fakeEmbedder{dim: 1}
	g := NewGatedEmbedder(inner, fastGate(1, 1), "local", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.GenerateEmbeddings(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}

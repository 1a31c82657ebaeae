package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

type fakeClient struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return goredis.NewStatusResult("", f.setErr)
	}
	data, ok := value.([]byte)
	if !ok {
		return goredis.NewStatusResult("", errors.New("unexpected value type"))
	}
	f.values[key] = append([]byte(nil), data...)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestCheckpointStoreMissingKey(t *testing.T) {
	t.Parallel()

	store, err := NewCheckpointStoreWithClient(newFakeClient(), "", 0)
	require.NoError(t, err)
	_, err = store.Get(context.Background())
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestCheckpointStorePutGet(t *testing.T) {
	t.Parallel()

	fake := newFakeClient()
	store, err := NewCheckpointStoreWithClient(fake, "cp", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), []byte(`{"fingerprint":"x"}`)))
	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"fingerprint":"x"}`, string(got))
	assert.Equal(t, time.Hour, fake.ttls["cp"])

	require.NoError(t, store.Close())
	assert.True(t, fake.closed)
}

func TestCheckpointStoreWrapsErrors(t *testing.T) {
	t.Parallel()

	fake := newFakeClient()
	fake.getErr = errors.New("connection reset")
	fake.setErr = errors.New("READONLY")
	store, err := NewCheckpointStoreWithClient(fake, "cp", 0)
	require.NoError(t, err)

	_, err = store.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkpoint.ErrNotFound)
	assert.Contains(t, err.Error(), "redis get cp: connection reset")

	err = store.Put(context.Background(), []byte(`{}`))
	require.EqualError(t, err, "redis set cp: READONLY")
}

func TestCheckpointStoreBacksStore(t *testing.T) {
	t.Parallel()

	backend, err := NewCheckpointStoreWithClient(newFakeClient(), "cp", 0)
	require.NoError(t, err)
	store := checkpoint.NewStore(backend, nil, zap.NewNop())

	jobs := []crawler.JobID{"u1", "u2", "u3"}
	state, _, err := store.Load(context.Background(), jobs)
	require.NoError(t, err)
	state.MarkCompleted("u3")
	require.NoError(t, store.Save(context.Background(), state))

	_, pending, err := store.Load(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, []crawler.JobID{"u1", "u2"}, pending)
}

func TestNewCheckpointStoreRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewCheckpointStore(context.Background(), Config{})
	require.Error(t, err)
}

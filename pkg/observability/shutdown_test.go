package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManager_Defaults(t *testing.T) {
	sm := NewShutdownManager(nil, nil, 0)
	assert.Equal(t, 30*time.Second, sm.timeout)
	assert.NotNil(t, sm.logger)
}

func TestShutdown_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, time.Second)

	var order []string
	for _, name := range []string{"postgres", "redis", "audit"} {
		name := name
		sm.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	sm.Register("ignored", nil)

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"audit", "redis", "postgres"}, order)
}

func TestShutdown_RunsAllAndJoinsErrors(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, time.Second)

	errA := errors.New("a failed")
	ran := 0
	sm.Register("a", func(context.Context) error { ran++; return errA })
	sm.Register("b", func(context.Context) error { ran++; return nil })

	err := sm.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 2, ran)
}

func TestShutdown_StopsServer(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Start()
	defer ts.Close()

	sm := NewShutdownManager(NewNopLogger(), ts.Config, time.Second)
	require.NoError(t, sm.Shutdown(context.Background()))

	_, err := http.Get(ts.URL)
	assert.Error(t, err)
}

func TestWaitForSignal_ContextCancel(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, time.Second)

	var wg sync.WaitGroup
	called := false
	sm.Register("flag", func(context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, sm.WaitForSignal(ctx))
	}()

	cancel()
	wg.Wait()
	assert.True(t, called)
}

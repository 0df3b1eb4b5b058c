package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_PollAppliesFetchedCopy(t *testing.T) {
	want := &domain.FormConfig{ID: "f1", Version: 3}
	var got *domain.FormConfig
	p := NewPoller(
		FetcherFunc(func(context.Context) (*domain.FormConfig, error) { return want, nil }),
		func(_ context.Context, f *domain.FormConfig) error { got = f; return nil },
		time.Second, nil,
	)

	require.NoError(t, p.Poll(context.Background()))
	assert.Same(t, want, got)
}

func TestPoller_PollReturnsFetchError(t *testing.T) {
	boom := errors.New("boom")
	applied := false
	p := NewPoller(
		FetcherFunc(func(context.Context) (*domain.FormConfig, error) { return nil, boom }),
		func(context.Context, *domain.FormConfig) error { applied = true; return nil },
		time.Second, nil,
	)

	assert.ErrorIs(t, p.Poll(context.Background()), boom)
	assert.False(t, applied)
}

func TestPoller_ConcurrentPollsShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	p := NewPoller(
		FetcherFunc(func(context.Context) (*domain.FormConfig, error) {
			fetches.Add(1)
			once.Do(func() { close(started) })
			<-release
			return &domain.FormConfig{}, nil
		}),
		func(context.Context, *domain.FormConfig) error { return nil },
		time.Second, nil,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Poll(context.Background()))
	}()
	<-started
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Poll(context.Background()))
		}()
	}
	// Give the followers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	var polls atomic.Int32
	p := NewPoller(
		FetcherFunc(func(context.Context) (*domain.FormConfig, error) {
			polls.Add(1)
			return nil, errors.New("offline")
		}),
		func(context.Context, *domain.FormConfig) error { return nil },
		5*time.Millisecond, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return polls.Load() >= 2 }, time.Second, 5*time.Millisecond,
		"failed polls do not stop the loop")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPoller_RunDisabledInterval(t *testing.T) {
	p := NewPoller(FetcherFunc(func(context.Context) (*domain.FormConfig, error) {
		t.Fatal("fetch should not run")
		return nil, nil
	}), nil, 0, nil)
	assert.NoError(t, p.Run(context.Background()))
}

func TestSessionPoller_PicksUpRemoteSave(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	p := NewSessionPoller(s, time.Second, nil)

	remote := autosave.DocumentFromForm(form)
	remote.InternalName = "Changed elsewhere"
	_, err := env.svc.SaveDocument(ctx, form.ID, remote)
	require.NoError(t, err)

	require.NoError(t, p.Poll(ctx))
	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, "Changed elsewhere", local.InternalName)
	assert.Equal(t, 2, local.Version)
}

package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects recorded entries for assertions
type captureSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *captureSink) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *captureSink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRecorderDelivers(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink)
	defer recorder.Close()

	entry := NewEntry(CategoryAuthentication, ActionLoginSucceeded).
		WithActor("user-1").
		WithRequestMeta("10.0.0.1", "go-test").
		WithDetail("device", "laptop")
	recorder.Record(entry)

	waitFor(t, func() bool { return len(sink.all()) == 1 })

	got := sink.all()[0]
	assert.Equal(t, ActionLoginSucceeded, got.Action)
	assert.Equal(t, "user-1", got.ActorID)
	assert.Equal(t, "10.0.0.1", got.IPAddress)
	assert.Equal(t, "laptop", got.Details["device"])
	assert.NotEqual(t, entry.ID.String(), "")
}

func TestRecorderCloseDrainsQueue(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink, WithQueueSize(16))

	for i := 0; i < 10; i++ {
		recorder.Record(NewEntry(CategoryAuthentication, ActionTokenRotated))
	}
	recorder.Close()

	waitFor(t, func() bool { return len(sink.all()) == 10 })

	// Close is idempotent
	recorder.Close()
}

func TestEntryBuilders(t *testing.T) {
	entry := NewEntry(CategoryAuthentication, ActionImpersonationStarted).
		WithActor("admin-1").
		WithTarget("user-2").
		WithDetail("reason", "support ticket")

	require.NotEqual(t, "", entry.ID.String())
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, "user-2", entry.TargetID)
	assert.Equal(t, "support ticket", entry.Details["reason"])
	assert.False(t, entry.CreatedAt.IsZero())

	// Builders copy, the original is untouched
	modified := entry.WithActor("someone-else")
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, "someone-else", modified.ActorID)
}

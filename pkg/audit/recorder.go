package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize bounds the number of entries waiting for the sink
const DefaultQueueSize = 1024

// sinkTimeout caps how long a single sink write may take
const sinkTimeout = 5 * time.Second

// Recorder dispatches entries to a Sink from a background worker through a
// bounded queue. Record never blocks and never returns an error to the
// caller; when the queue is full or the sink fails, the entry is dropped and
// the failure is logged so operators can see the gap in the trail.
type Recorder struct {
	sink  Sink
	queue chan Entry

	closeOnce sync.Once
	done      chan struct{}
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithQueueSize sets the queue capacity
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		r.queue = make(chan Entry, n)
	}
}

// NewRecorder creates a Recorder and starts its worker
func NewRecorder(sink Sink, options ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:  sink,
		queue: make(chan Entry, DefaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, option := range options {
		option(r)
	}

	go r.run()
	return r
}

// Record enqueues an entry for asynchronous delivery
func (r *Recorder) Record(entry Entry) {
	select {
	case r.queue <- entry:
	default:
		slog.Error("Audit queue full, dropping entry",
			"action", entry.Action, "actor", entry.ActorID)
	}
}

func (r *Recorder) run() {
	for {
		select {
		case entry := <-r.queue:
			r.deliver(entry)
		case <-r.done:
			// drain what is already queued before exiting
			for {
				select {
				case entry := <-r.queue:
					r.deliver(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) deliver(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if err := r.sink.Record(ctx, entry); err != nil {
		slog.Error("Failed to record audit entry",
			"action", entry.Action, "actor", entry.ActorID, "err", err)
	}
}

// Close stops the worker after draining queued entries
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// SlogSink writes audit entries to the process log
type SlogSink struct{}

// Record implements Sink
func (SlogSink) Record(_ context.Context, entry Entry) error {
	slog.Info("audit",
		"category", entry.Category,
		"action", entry.Action,
		"actor", entry.ActorID,
		"target", entry.TargetID,
		"details", entry.Details)
	return nil
}

// Package serializer implements the single-writer-per-channel guarantee
// C4 depends on: every manifest mutation for a given channel ID runs
// inside that channel's own goroutine, one job at a time, so concurrent
// requests for different renditions of the same break never race on the
// ad-break state. Distinct channels are fully independent, mirroring the
// process-wide per-host semaphore pattern in internal/httpclient, but
// keyed per-channel and single-slot rather than bounded-concurrent.
package serializer

import (
	"context"
	"fmt"
	"sync"
)

// mailboxCapacity is the soft bound on queued-but-not-yet-running jobs
// for one channel before a submitter starts blocking on send.
const mailboxCapacity = 64

type job struct {
	run    func() (string, error)
	result chan<- jobResult
}

type jobResult struct {
	manifest string
	err      error
}

type actor struct {
	mailbox chan job
}

func newActor() *actor {
	a := &actor{mailbox: make(chan job, mailboxCapacity)}
	go a.loop()
	return a
}

func (a *actor) loop() {
	for j := range a.mailbox {
		a.execute(j)
	}
}

// execute recovers from any panic raised by the submitted work so the
// actor's loop always continues to the next job; the caller observes it
// as an ordinary error and is expected to fall back to a safe response.
func (a *actor) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			j.result <- jobResult{err: fmt.Errorf("serializer: recovered panic: %v", r)}
		}
	}()
	manifest, err := j.run()
	j.result <- jobResult{manifest: manifest, err: err}
}

// Serializer owns one actor per channel ID, created lazily on first use.
type Serializer struct {
	mu     sync.Mutex
	actors map[string]*actor
}

// New returns an empty Serializer.
func New() *Serializer {
	return &Serializer{actors: make(map[string]*actor)}
}

func (s *Serializer) actorFor(channelID string) *actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[channelID]
	if !ok {
		a = newActor()
		s.actors[channelID] = a
	}
	return a
}

// Serve runs fn inside channelID's critical section, queued behind any
// in-flight or already-queued work for that same channel. It blocks until
// fn completes, ctx is canceled, or the mailbox send itself is canceled.
func (s *Serializer) Serve(ctx context.Context, channelID string, fn func(ctx context.Context) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a := s.actorFor(channelID)
	resultCh := make(chan jobResult, 1)
	j := job{run: func() (string, error) { return fn(ctx) }, result: resultCh}

	select {
	case a.mailbox <- j:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-resultCh:
		return r.manifest, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Do runs fn inside channelID's critical section exactly like Serve, for
// callers with no manifest string to return — the cue channel (C8)
// mutates AdBreakState through here rather than Serve, since it has
// nothing to hand back but success or failure.
func (s *Serializer) Do(ctx context.Context, channelID string, fn func(ctx context.Context) error) error {
	_, err := s.Serve(ctx, channelID, func(ctx context.Context) (string, error) {
		return "", fn(ctx)
	})
	return err
}

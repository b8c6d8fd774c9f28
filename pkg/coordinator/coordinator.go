/*
Package coordinator keeps one search session in sync with a remote search
service.

Callers push input with SetInput as often as they like (per keystroke is
fine) and read the current result with Result or Subscribe. The Coordinator
guarantees:

  - at most one search call is outstanding at any time;
  - an input that normalizes to the payload of the last successful call is
    answered from that call's result without touching the network;
  - input that arrives while a call is outstanding does not disturb that call;
    when it completes, the newest input is dispatched if it differs;
  - once calls settle, the published result belongs to the newest input.

There are no timers: the in-flight guard plus the re-check on completion is
what coalesces bursts of input into one call per settled value.

	c, err := coordinator.New(transport.NewClient(endpoint))
	c.SetInput(query.RawInput{Words: "cat"})
	c.SetInput(query.RawInput{Words: "cats"})
	res := c.Result()
*/
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bastiangx/dotsearch/internal/logger"
	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/charmbracelet/log"
)

var (
	// ErrSearcherRequired is returned by New when no Searcher is given.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrInFlight is returned when a dispatch is attempted while a call is outstanding.
	ErrInFlight = errors.New("search already in flight")

	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("coordinator closed")
)

// Searcher performs one search call. Implementations may return unsorted
// results or nil lists; the Coordinator normalizes them.
type Searcher interface {
	Search(ctx context.Context, payload query.Payload) (query.Result, error)
}

// SearcherFunc adapts a plain function to the Searcher interface.
type SearcherFunc func(ctx context.Context, payload query.Payload) (query.Result, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, payload query.Payload) (query.Result, error) {
	return f(ctx, payload)
}

// State is the dispatch state of a Coordinator.
type State int

const (
	// Idle means no call is outstanding.
	Idle State = iota
	// InFlight means exactly one call is outstanding.
	InFlight
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in-flight"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type resolved struct {
	payload query.Payload
	result  query.Result
}

// Coordinator owns the state of one search session. All fields below mu are
// guarded by it; the Searcher is always called without holding it.
type Coordinator struct {
	searcher  Searcher
	ctx       context.Context
	log       *log.Logger
	onPublish func(query.Result)

	mu         sync.Mutex
	state      State
	desired    query.Payload
	hasDesired bool
	inFlight   query.Payload
	published  query.Result
	last       *resolved
	idle       chan struct{}
	subs       map[int]chan query.Result
	nextSub    int
	closed     bool
	stats      stats
}

type stats struct {
	inputs     int
	dispatched int
	cacheHits  int
	successes  int
	failures   int
	rejected   int
	publishes  int
	discarded  int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithContext sets the context passed to every Searcher call.
func WithContext(ctx context.Context) Option {
	return func(c *Coordinator) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// OnPublish registers fn to run synchronously on every publish.
// fn must not call back into the Coordinator.
func OnPublish(fn func(query.Result)) Option {
	return func(c *Coordinator) {
		c.onPublish = fn
	}
}

// New creates a Coordinator for one search session.
func New(searcher Searcher, opts ...Option) (*Coordinator, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	idle := make(chan struct{})
	close(idle)

	c := &Coordinator{
		searcher:  searcher,
		ctx:       context.Background(),
		log:       logger.New("coordinator"),
		state:     Idle,
		published: query.EmptyResult(),
		idle:      idle,
		subs:      make(map[int]chan query.Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetInput records input as the desired query. It never blocks on the network:
// from Idle it dispatches (or answers from cache) right away, while a call is
// outstanding it only updates the desired payload.
func (c *Coordinator) SetInput(input query.RawInput) {
	payload := query.Normalize(input)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.log.Debug("input after close ignored", "payload", payload)
		return
	}
	c.stats.inputs++
	c.desired = payload
	c.hasDesired = true

	if c.state == InFlight {
		c.log.Debug("call outstanding, input queued", "in_flight", c.inFlight, "desired", payload)
		return
	}
	c.dispatchLocked()
}

// Retry re-attempts the desired payload. It is the only way a payload whose
// call failed is sent again; the Coordinator never retries on its own.
func (c *Coordinator) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.dispatchLocked()
}

// dispatchLocked is the only place a call is started. Must hold c.mu.
func (c *Coordinator) dispatchLocked() error {
	if c.state == InFlight {
		c.stats.rejected++
		c.log.Warn("dispatch rejected", "in_flight", c.inFlight, "desired", c.desired)
		return ErrInFlight
	}
	if !c.hasDesired {
		return nil
	}

	if c.last != nil && c.last.payload.Equal(c.desired) {
		c.stats.cacheHits++
		c.log.Debug("cache hit", "payload", c.desired)
		c.publishLocked(c.last.result)
		return nil
	}

	payload := c.desired
	c.state = InFlight
	c.inFlight = payload
	c.idle = make(chan struct{})
	c.stats.dispatched++
	c.log.Debug("dispatching search", "payload", payload)

	go c.run(payload)
	return nil
}

// run performs the call outside the lock and hands the outcome to complete.
func (c *Coordinator) run(payload query.Payload) {
	var (
		res query.Result
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("searcher panic: %v", r)
			}
		}()
		res, err = c.searcher.Search(c.ctx, payload)
	}()
	c.complete(payload, res, err)
}

// complete applies the outcome of the call for payload and, if the desired
// payload moved on meanwhile, dispatches the follow-up.
func (c *Coordinator) complete(payload query.Payload, res query.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Idle
	c.inFlight = query.Payload{}
	close(c.idle)

	if c.closed {
		c.stats.discarded++
		return
	}

	if err != nil {
		c.stats.failures++
		c.log.Warn("search failed", "payload", payload, "err", err)
	} else {
		c.stats.successes++
		result := res.Normalized()
		c.last = &resolved{payload: payload, result: result}
		c.publishLocked(result)
	}

	// A failed payload is not retried here; only a newer input is sent.
	if !c.desired.Equal(payload) {
		c.log.Debug("input changed while in flight", "completed", payload, "desired", c.desired)
		c.dispatchLocked()
	}
}

// publishLocked makes result the current value and notifies observers. Must hold c.mu.
// Every observer gets its own copy so the cached result cannot be changed from outside.
func (c *Coordinator) publishLocked(result query.Result) {
	c.published = result
	c.stats.publishes++

	for _, ch := range c.subs {
		// Latest value wins: drop a value the subscriber has not read yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- result.Clone():
		default:
		}
	}
	if c.onPublish != nil {
		c.onPublish(result.Clone())
	}
}

// Result returns a copy of the most recently published result. Before any
// call succeeds it is the empty result.
func (c *Coordinator) Result() query.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published.Clone()
}

// Subscribe returns a channel that receives every published result. A slow
// reader only ever sees the newest value. The returned func unsubscribes
// and closes the channel; Close does the same for all subscribers.
func (c *Coordinator) Subscribe() (<-chan query.Result, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan query.Result, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// State returns the current dispatch state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Desired returns the payload of the most recent SetInput.
func (c *Coordinator) Desired() query.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

// Wait blocks until no call is outstanding or ctx is done. Follow-up calls
// started by a completion are waited for as well.
func (c *Coordinator) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == Idle {
			c.mu.Unlock()
			return nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close ends the session. An outstanding call still runs to completion but
// its result is dropped. Subscriber channels are closed. Safe to call twice.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.log.Debug("session closed", "state", c.state)
}

// Stats returns counters describing the session so far.
func (c *Coordinator) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	inFlight := 0
	if c.state == InFlight {
		inFlight = 1
	}
	return map[string]int{
		"inputs":     c.stats.inputs,
		"dispatched": c.stats.dispatched,
		"cacheHits":  c.stats.cacheHits,
		"successes":  c.stats.successes,
		"failures":   c.stats.failures,
		"rejected":   c.stats.rejected,
		"publishes":  c.stats.publishes,
		"discarded":  c.stats.discarded,
		"inFlight":   inFlight,
	}
}

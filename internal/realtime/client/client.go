package client

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kpireview/internal/domain/notifications"
)

// State is the connection machine: Idle -> Connecting -> Connected, back
// through Backoff on transport loss.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateBackoff    State = "backoff"
)

// DefaultBackoff is the reconnect wait table; the last entry repeats once
// the table is exhausted.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// Handler receives business events in registration order.
type Handler func(notifications.Event)

type handlerEntry struct {
	id int
	fn Handler
}

// Client maintains the single logical subscription to the server's event
// stream: it parses wire messages, fans them out to handlers, and reconnects
// with backoff after transport loss.
type Client struct {
	transport Transport
	scheduler Scheduler
	backoff   []time.Duration
	maxTries  int

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	retries       int
	generation    int
	cancelBackoff func()
	handlers      []handlerEntry
	nextHandlerID int
	last          notifications.Event
	hasLast       bool
	closed        bool
}

type Option func(*Client)

func WithScheduler(scheduler Scheduler) Option {
	return func(c *Client) { c.scheduler = scheduler }
}

func WithBackoff(table []time.Duration) Option {
	return func(c *Client) {
		if len(table) > 0 {
			c.backoff = table
		}
	}
}

// WithMaxRetries caps consecutive reconnect attempts; zero means unlimited.
func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxTries = max }
}

func New(transport Transport, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport: transport,
		scheduler: NewTimerScheduler(),
		backoff:   DefaultBackoff,
		state:     StateIdle,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the stream. A call while already connected or connecting is
// a no-op; a call during backoff supersedes the pending retry timer.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	if c.cancelBackoff != nil {
		c.cancelBackoff()
		c.cancelBackoff = nil
	}
	c.state = StateConnecting
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	go c.run(generation)
}

// Resume is the external wake signal (page visible again, network restored).
// It only acts when not already connected or connecting.
func (c *Client) Resume() {
	c.mu.Lock()
	if c.closed || c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.Connect()
}

func (c *Client) run(generation int) {
	reader, err := c.transport.Open(c.ctx)

	c.mu.Lock()
	if c.closed || c.generation != generation {
		c.mu.Unlock()
		if reader != nil {
			_ = reader.Close()
		}
		return
	}
	if err != nil {
		slog.Warn("event stream connect failed", "err", err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.retries = 0
	c.mu.Unlock()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if raw == "" {
			continue
		}
		event, err := notifications.Decode([]byte(raw))
		if err != nil {
			slog.Warn("dropping malformed stream event", "err", err)
			continue
		}
		c.dispatch(event)
	}
	_ = reader.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.generation != generation {
		return
	}
	c.state = StateIdle
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked picks the wait from the backoff table indexed by
// the consecutive-retry counter; the last entry repeats once exhausted.
func (c *Client) scheduleReconnectLocked() {
	if c.maxTries > 0 && c.retries >= c.maxTries {
		c.state = StateIdle
		return
	}
	idx := c.retries
	if idx >= len(c.backoff) {
		idx = len(c.backoff) - 1
	}
	wait := c.backoff[idx]
	c.retries++
	c.state = StateBackoff
	c.cancelBackoff = c.scheduler.Schedule(wait, func() {
		c.mu.Lock()
		if c.state == StateBackoff {
			c.state = StateIdle
		}
		c.mu.Unlock()
		c.Connect()
	})
}

// dispatch records the event as last-seen and, for business events, fans it
// out in registration order. A panicking handler is isolated so it cannot
// block delivery to the next.
func (c *Client) dispatch(event notifications.Event) {
	c.mu.Lock()
	c.last = event
	c.hasLast = true
	handlers := make([]handlerEntry, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	if event.Control() {
		return
	}

	for _, entry := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panicked", "eventType", event.Type, "panic", r)
				}
			}()
			entry.fn(event)
		}()
	}
}

// Subscribe registers a handler and returns its removal function, which is
// safe to call more than once.
func (c *Client) Subscribe(fn Handler) (unsubscribe func()) {
	c.mu.Lock()
	c.nextHandlerID++
	id := c.nextHandlerID
	c.handlers = append(c.handlers, handlerEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.handlers {
			if entry.id == id {
				c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Retries reports the consecutive reconnect counter.
func (c *Client) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Last returns the most recent event seen on the wire, including control
// events, for passive observers.
func (c *Client) Last() (notifications.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// Close tears the client down permanently.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.state = StateIdle
	c.generation++
	if c.cancelBackoff != nil {
		c.cancelBackoff()
		c.cancelBackoff = nil
	}
	c.mu.Unlock()
	c.cancel()
}

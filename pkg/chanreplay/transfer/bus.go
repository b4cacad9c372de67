package transfer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrBusClosed is returned by Dispatch after Close.
var ErrBusClosed = errors.New("transfer bus closed")

// Handler consumes envelopes delivered by a Bus subscription.
type Handler func(ctx context.Context, env Envelope) error

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// OnError is called when a handler returns an error.
	OnError func(env Envelope, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// Bus is an in-process transfer fabric. Envelopes are fanned out to
// subscribers of their channel and to wildcard subscribers. Each
// subscription drains its own buffered queue on a dedicated goroutine,
// so envelopes on one subscription are handled in dispatch order.
type Bus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	byChannel     map[string]map[string]*Subscription
	wildcards     map[string]*Subscription

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

var _ Dispatcher = (*Bus)(nil)

// NewBus creates a new transfer bus.
func NewBus(config BusConfig) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &Bus{
		config:        config,
		subscriptions: make(map[string]*Subscription),
		byChannel:     make(map[string]map[string]*Subscription),
		wildcards:     make(map[string]*Subscription),
		closeCh:       make(chan struct{}),
	}
}

// Subscription is an active registration on a Bus.
type Subscription struct {
	id      string
	channel string // empty = all channels
	handler Handler
	queue   chan Envelope
	done    chan struct{}
	once    sync.Once
	bus     *Bus
	// senders counts Dispatch calls that may still send to queue. Adds
	// happen under the bus read lock while the subscription is listed.
	senders sync.WaitGroup
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Dispatch delivers env to every matching subscription. It blocks while a
// subscriber's buffer is full, returning early if ctx is cancelled or the
// bus is closed.
func (b *Bus) Dispatch(ctx context.Context, env Envelope) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.mu.RLock()
	subs := b.matching(env.Channel)
	for _, sub := range subs {
		sub.senders.Add(1)
	}
	b.mu.RUnlock()

	for i, sub := range subs {
		err := b.send(ctx, sub, env)
		sub.senders.Done()
		if err != nil {
			for _, rest := range subs[i+1:] {
				rest.senders.Done()
			}
			return err
		}
	}
	return nil
}

func (b *Bus) send(ctx context.Context, sub *Subscription, env Envelope) error {
	select {
	case sub.queue <- env:
	case <-sub.done:
		// Unsubscribed mid-dispatch; skip it.
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closeCh:
		return ErrBusClosed
	}
	return nil
}

// Subscribe registers handler for envelopes on channel.
// An empty channel subscribes to every envelope.
// Returns nil if the bus is closed.
func (b *Bus) Subscribe(channel string, handler Handler) *Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := "sub-" + strconv.FormatInt(b.nextID.Add(1), 10)
	sub := &Subscription{
		id:      id,
		channel: channel,
		handler: handler,
		queue:   make(chan Envelope, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}

	b.subscriptions[id] = sub
	if channel == "" {
		b.wildcards[id] = sub
	} else {
		if b.byChannel[channel] == nil {
			b.byChannel[channel] = make(map[string]*Subscription)
		}
		b.byChannel[channel][id] = sub
	}

	b.wg.Add(1)
	go sub.process()

	return sub
}

func (b *Bus) matching(channel string) []*Subscription {
	subs := make([]*Subscription, 0, len(b.byChannel[channel])+len(b.wildcards))
	for _, sub := range b.byChannel[channel] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}
	return subs
}

// Close shuts the bus down and waits for every subscription goroutine
// to exit. Envelopes still queued are drained before exit.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.closeCh)

	b.mu.Lock()
	for _, sub := range b.subscriptions {
		sub.stop()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Unsubscribe removes the subscription and stops its goroutine.
// Envelopes already queued are still handled.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	delete(s.bus.wildcards, s.id)
	if subs, ok := s.bus.byChannel[s.channel]; ok {
		delete(subs, s.id)
	}
	s.bus.mu.Unlock()

	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) process() {
	defer s.bus.wg.Done()
	for {
		select {
		case env := <-s.queue:
			s.handle(env)
		case <-s.done:
			// A sender racing stop may still win its select.
			s.senders.Wait()
			for {
				select {
				case env := <-s.queue:
					s.handle(env)
				default:
					return
				}
			}
		}
	}
}

func (s *Subscription) handle(env Envelope) {
	if err := s.handler(context.Background(), env); err != nil && s.bus.config.OnError != nil {
		s.bus.config.OnError(env, s.id, err)
	}
}

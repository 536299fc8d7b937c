package event

import (
	"log/slog"
	"sync"
	"time"

	"order_engine/internal/domain"
	"order_engine/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 5 * time.Second
)

// Conn is the write side of a client connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Message is the status event sent to subscribers of an order.
type Message struct {
	OrderID string              `json:"orderId"`
	Status  domain.OrderStatus  `json:"status"`
	Payload domain.StatusUpdate `json:"payload"`
}

type connectedMessage struct {
	Event   string `json:"event"`
	OrderID string `json:"orderId"`
}

// Subscription is one connection listening to one order.
type Subscription struct {
	orderID string
	conn    Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

// OrderID returns the order this subscription listens to.
func (s *Subscription) OrderID() string {
	return s.orderID
}

// Done is closed once the subscription is removed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Broadcaster fans status events out to per-order subscriber sets.
// Delivery is best-effort: there is no replay and slow subscribers lose messages.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool

	sendBuffer   int
	writeTimeout time.Duration
	metrics      *infra.Metrics
	logger       *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithSendBuffer sets the number of messages queued per subscriber.
func WithSendBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single socket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.writeTimeout = d
		}
	}
}

// WithMetrics records publish and drop counters into m.
func WithMetrics(m *infra.Metrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:         make(map[string]map[*Subscription]struct{}),
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		metrics:      &infra.Metrics{},
		logger:       slog.Default().With("module", "broadcaster"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers conn for orderID and queues the connected acknowledgement.
// Earlier events are not replayed.
func (b *Broadcaster) Subscribe(orderID string, conn Conn) *Subscription {
	s := &Subscription{
		orderID: orderID,
		conn:    conn,
		send:    make(chan []byte, b.sendBuffer),
		done:    make(chan struct{}),
	}

	ack, err := encode(connectedMessage{Event: "connected", OrderID: orderID})
	if err == nil {
		s.send <- ack
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.closeSubscription(s)
		return s
	}
	set, ok := b.subs[orderID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[orderID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	b.metrics.IncrementSubscribers()
	go b.writeLoop(s)

	b.logger.Debug("Subscribed", slog.String("order_id", orderID))
	return s
}

// Unsubscribe removes s and closes its connection. Safe to call more than once.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	set := b.subs[s.orderID]
	_, registered := set[s]
	if registered {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.orderID)
		}
	}
	b.mu.Unlock()

	if registered {
		b.metrics.DecrementSubscribers()
	}
	b.closeSubscription(s)
}

// Publish sends update to every current subscriber of orderID.
// It never blocks on a subscriber and is a no-op when nobody listens.
func (b *Broadcaster) Publish(orderID string, update domain.StatusUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set := b.subs[orderID]
	if len(set) == 0 {
		return
	}

	msg, err := encode(Message{OrderID: orderID, Status: update.Status(), Payload: update})
	if err != nil {
		b.logger.Error("Failed to encode event", slog.String("order_id", orderID), slog.Any("error", err))
		return
	}

	b.metrics.RecordPublished()
	for s := range set {
		select {
		case s.send <- msg:
		default:
			b.metrics.RecordDropped()
			b.logger.Warn("Subscriber buffer full, dropping event",
				slog.String("order_id", orderID),
				slog.String("status", string(update.Status())),
			)
		}
	}
}

// SubscriberCount returns the number of live subscriptions for orderID.
func (b *Broadcaster) SubscriberCount(orderID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[orderID])
}

// Close removes every subscription. Later subscriptions are closed immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range all {
		b.metrics.DecrementSubscribers()
		b.closeSubscription(s)
	}
}

func (b *Broadcaster) closeSubscription(s *Subscription) {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writeLoop is the only goroutine writing to s.conn, so per-subscriber order
// equals publish order.
func (b *Broadcaster) writeLoop(s *Subscription) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.logger.Debug("Write failed, unsubscribing",
					slog.String("order_id", s.orderID),
					slog.Any("error", err),
				)
				b.Unsubscribe(s)
				return
			}
		}
	}
}

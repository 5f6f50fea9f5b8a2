// Package notify delivers order confirmations. Delivery is fire-and-forget
// relative to the order transaction: a failed or dropped notification never
// surfaces as an order error.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type ConfirmationItem struct {
	Name     string
	Quantity int
	Price    float64
}

type Confirmation struct {
	Recipient   string
	OrderNumber string
	Items       []ConfirmationItem
	Subtotal    float64
	Tax         float64
	Total       float64
	PickupTime  *time.Time
	Token       string
}

// Sender delivers one confirmation; the Mailer is the production
// implementation.
type Sender interface {
	Send(ctx context.Context, c Confirmation) error
}

type Dispatcher struct {
	sender   Sender
	queue    chan Confirmation
	retries  int
	backoff  time.Duration
	stopOnce sync.Once
	done     chan struct{}
}

// NewDispatcher starts a single delivery worker over a bounded queue.
func NewDispatcher(sender Sender) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan Confirmation, 64),
		retries: 3,
		backoff: 2 * time.Second,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue never blocks the caller: when the queue is full the confirmation
// is dropped with a log line.
func (d *Dispatcher) Enqueue(c Confirmation) {
	select {
	case d.queue <- c:
	default:
		log.Error().Str("order_number", c.OrderNumber).Msg("notification queue full, dropping confirmation")
	}
}

// Close stops accepting work and waits for queued confirmations to drain.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for c := range d.queue {
		d.deliver(c)
	}
}

func (d *Dispatcher) deliver(c Confirmation) {
	var err error
	for attempt := 1; attempt <= d.retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = d.sender.Send(ctx, c)
		cancel()
		if err == nil {
			log.Info().Str("order_number", c.OrderNumber).Str("recipient", c.Recipient).Msg("confirmation sent")
			return
		}
		log.Warn().Err(err).
			Str("order_number", c.OrderNumber).
			Int("attempt", attempt).
			Msg("failed to send confirmation")
		if attempt < d.retries {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	log.Error().Err(err).Str("order_number", c.OrderNumber).Msg("giving up on confirmation")
}

package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"referral-rewards-system/transport"
)

// UpdateSource produces inbound events. *transport.BotClient is the
// production source.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64) ([]transport.InputEvent, int64, error)
}

// EventHandler consumes one event. *services.Dispatcher is the production
// handler.
type EventHandler interface {
	Dispatch(ctx context.Context, ev transport.InputEvent) error
}

const userQueueSize = 64

// UpdatePoller pulls updates from the bot API and feeds them to the handler.
// It is the ingress used when no public webhook URL is available. Each user
// gets one ordered queue drained by one goroutine, so a user's events are
// handled strictly in arrival order while different users proceed in
// parallel.
type UpdatePoller struct {
	Source  UpdateSource
	Handler EventHandler

	mu     sync.Mutex
	queues map[string]chan transport.InputEvent
}

func NewUpdatePoller(source UpdateSource, handler EventHandler) *UpdatePoller {
	return &UpdatePoller{
		Source:  source,
		Handler: handler,
		queues:  make(map[string]chan transport.InputEvent),
	}
}

// enqueue appends the event to its user's queue, starting the drain goroutine
// on first sight of that user. A full queue blocks the poll loop rather than
// reordering or dropping events.
func (p *UpdatePoller) enqueue(ctx context.Context, ev transport.InputEvent) {
	p.mu.Lock()
	q, ok := p.queues[ev.UserID]
	if !ok {
		q = make(chan transport.InputEvent, userQueueSize)
		p.queues[ev.UserID] = q
		go p.drain(ctx, ev.UserID, q)
	}
	p.mu.Unlock()

	select {
	case q <- ev:
	case <-ctx.Done():
	}
}

func (p *UpdatePoller) drain(ctx context.Context, userID string, q chan transport.InputEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q:
			if err := p.Handler.Dispatch(ctx, ev); err != nil {
				log.Printf("❌ Failed to handle update from %s: %v", userID, err)
			}
		}
	}
}

// PollUpdates loops until ctx is cancelled, routing every fetched event
// through its user's ordered queue.
func PollUpdates(ctx context.Context, poller *UpdatePoller, retryDelay time.Duration) {
	log.Println("Starting bot update polling...")
	var offset int64

	for {
		select {
		case <-ctx.Done():
			log.Println("Update polling stopped.")
			return
		default:
		}

		events, next, err := poller.Source.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Update polling stopped.")
				return
			}
			log.Printf("❌ Error polling updates: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}
		offset = next

		for _, ev := range events {
			poller.enqueue(ctx, ev)
		}
	}
}

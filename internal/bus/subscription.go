package bus

import (
	"context"
	"sync"

	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/model"
)

// Subscription is one subscriber's ordered view of a workspace's event
// stream. Events() yields events with strictly increasing sequence numbers;
// after the channel closes, Err() reports why: nil for a clean Close,
// Overflow when the subscriber fell behind or its cursor fell out of the
// retained log, Unavailable when replay failed.
type Subscription struct {
	workspaceID int64
	fromSeq     int64
	bus         *Bus

	out    chan model.Event
	notify chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	buf    []model.Event
	cap    int
	closed bool
	err    error
	once   sync.Once
}

func newSubscription(b *Bus, workspaceID, fromSeq int64, bufferSize int) *Subscription {
	return &Subscription{
		workspaceID: workspaceID,
		fromSeq:     fromSeq,
		bus:         b,
		out:         make(chan model.Event),
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		cap:         bufferSize,
	}
}

// Events returns the delivery channel. It is closed when the subscription
// ends for any reason.
func (s *Subscription) Events() <-chan model.Event {
	return s.out
}

// Err reports why the subscription ended. Valid after Events() is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription and releases its buffer and registration
// synchronously. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.finish(nil)
}

// enqueue buffers a live event. Returns false when the buffer is full, in
// which case the bus drops this subscriber.
func (s *Subscription) enqueue(ev model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true // already ending, nothing to do
	}
	if len(s.buf) >= s.cap {
		return false
	}
	s.buf = append(s.buf, ev)
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription) fail(err error) {
	s.finish(err)
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		s.buf = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// run delivers replayed then live events until the subscription ends.
// Closing the out channel is the pump's job alone.
func (s *Subscription) run(ctx context.Context, b *Bus) {
	defer close(s.out)
	defer b.remove(s)

	lastSeq := s.fromSeq

	// Replay everything already stored past the cursor.
	for {
		events, err := b.source.ListSince(ctx, s.workspaceID, lastSeq, b.cfg.ReplayPage)
		if err != nil {
			if apperr.KindOf(err) == "" {
				err = apperr.Wrap(apperr.KindUnavailable, err, "event replay failed")
			}
			s.finish(err)
			return
		}
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			if ev.Seq <= lastSeq {
				continue
			}
			// The log is gapless, so a jump here means retention pruned
			// events past the cursor. Resuming would silently skip them;
			// the client must snapshot and resubscribe instead.
			if ev.Seq != lastSeq+1 {
				s.finish(apperr.Newf(apperr.KindOverflow,
					"cursor %d predates retained history (oldest seq %d)", s.fromSeq, ev.Seq))
				return
			}
			if !s.deliver(ctx, ev) {
				return
			}
			lastSeq = ev.Seq
		}
	}

	// Live phase: drain the buffer as the bus fills it.
	for {
		select {
		case <-ctx.Done():
			s.finish(nil)
			return
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.buf) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()

			// Replay already covered everything up to lastSeq; live events
			// that raced with it are duplicates here.
			if ev.Seq <= lastSeq {
				continue
			}

			// A relayed event can arrive ahead of its predecessors. Every
			// seq below a published one is already committed, so the gap
			// is always fillable from the store.
			if ev.Seq > lastSeq+1 {
				filled, ok := s.fillGap(ctx, b, lastSeq, ev.Seq)
				if !ok {
					return
				}
				lastSeq = filled
				if ev.Seq <= lastSeq {
					continue
				}
			}

			if !s.deliver(ctx, ev) {
				return
			}
			lastSeq = ev.Seq
		}
	}
}

// fillGap delivers stored events in (fromSeq, toSeq) and returns the last
// delivered sequence.
func (s *Subscription) fillGap(ctx context.Context, b *Bus, fromSeq, toSeq int64) (int64, bool) {
	last := fromSeq
	for last < toSeq-1 {
		events, err := b.source.ListSince(ctx, s.workspaceID, last, b.cfg.ReplayPage)
		if err != nil {
			if apperr.KindOf(err) == "" {
				err = apperr.Wrap(apperr.KindUnavailable, err, "event gap fill failed")
			}
			s.finish(err)
			return last, false
		}
		if len(events) == 0 {
			break
		}
		before := last
		for _, ev := range events {
			if ev.Seq <= last || ev.Seq >= toSeq {
				continue
			}
			if !s.deliver(ctx, ev) {
				return last, false
			}
			last = ev.Seq
		}
		if last == before {
			break
		}
	}
	if last < toSeq-1 {
		// Nothing left in range; the gap was pruned by retention and
		// cannot be closed from the store.
		s.finish(apperr.Newf(apperr.KindOverflow,
			"events %d..%d no longer retained", last+1, toSeq-1))
		return last, false
	}
	return last, true
}

func (s *Subscription) deliver(ctx context.Context, ev model.Event) bool {
	select {
	case s.out <- ev:
		return true
	case <-ctx.Done():
		s.finish(nil)
		return false
	case <-s.done:
		return false
	}
}

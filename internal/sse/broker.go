// Package sse streams skill and link graph changes to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted besides the skill.* kinds passed in by callers.
const (
	EventLinksSynced  = "links.synced"
	EventGraphUpdated = "graph.updated"
)

// Event is one message on the stream. SkillID scopes it for filtered
// subscribers; events without one reach every client.
type Event struct {
	Type    string
	SkillID string
	Data    any
}

// subscription is a client stream, optionally limited to one skill.
type subscription struct {
	ch      chan []byte
	skillID string
}

func (s subscription) wants(e Event) bool {
	return s.skillID == "" || e.SkillID == "" || e.SkillID == s.skillID
}

// Broker fans events out to connected clients.
//
// A single loop owns the subscriber set, the event sequence and the graph
// throttle. Public methods talk to it over channels and become no-ops once
// Close has run.
type Broker struct {
	graphMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. graphThrottle bounds how often graph.updated
// follows a change; keepAlive is the idle ping interval, zero disables it.
func NewBroker(graphThrottle, keepAlive time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphMin:      graphThrottle,
		keepAlive:     keepAlive,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// encode frames e with its sequence number as the SSE id, so clients can
// tell gaps after a reconnect.
func encode(seq uint64, e Event) ([]byte, error) {
	data := e.Data
	if data == nil {
		data = struct{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan []byte]subscription)
	var (
		seq       uint64
		lastGraph time.Time
	)

	broadcast := func(e Event) {
		seq++
		raw, err := encode(seq, e)
		if err != nil {
			return
		}
		for ch, sub := range subs {
			if !sub.wants(e) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// slow client
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			subs[sub.ch] = sub

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case e := <-b.publishCh:
			broadcast(e)

		case e := <-b.changeCh:
			broadcast(e)
			if now := time.Now(); now.Sub(lastGraph) >= b.graphMin {
				lastGraph = now
				broadcast(Event{Type: EventGraphUpdated})
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. A non-empty skillID limits the stream to
// that skill's events plus unscoped ones. The returned channel is closed on
// Unsubscribe or Close.
func (b *Broker) Subscribe(skillID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, skillID: skillID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends e as is, without a graph.updated follow-up.
func (b *Broker) Publish(e Event) {
	b.send(b.publishCh, e)
}

// PublishSkillEvent announces a skill change (kind is e.g. "skill.updated")
// followed by a throttled graph.updated.
func (b *Broker) PublishSkillEvent(kind, skillID string) {
	b.send(b.changeCh, Event{
		Type:    kind,
		SkillID: skillID,
		Data:    map[string]string{"skillId": skillID},
	})
}

// PublishLinkSync announces that the auto edges of skillID were rebuilt.
func (b *Broker) PublishLinkSync(skillID string, written int) {
	b.send(b.changeCh, Event{
		Type:    EventLinksSynced,
		SkillID: skillID,
		Data:    map[string]any{"skillId": skillID, "written": written},
	})
}

func (b *Broker) send(ch chan Event, e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case ch <- e:
	case <-b.stopped:
	}
}

// ServeHTTP streams events until the client goes away (GET /api/events).
// The optional "skill" query parameter filters the stream.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: 3000\n\n"))
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("skill"))
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

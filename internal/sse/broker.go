// Package sse streams workspace changes to HTTP clients as Server-Sent Events.
// A client may narrow the stream to one workspace with ?root=<path>.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// KeepAlive is the idle interval after which ServeHTTP writes a comment
// line so proxies keep the stream open.
const KeepAlive = 30 * time.Second

// Event is one SSE message. Root names the workspace it belongs to; an
// empty Root reaches every client.
type Event struct {
	Type string `json:"type"`
	Root string `json:"root,omitempty"`
	Data any    `json:"data"`
}

type client struct {
	ch   chan []byte
	root string
}

func (c client) wants(root string) bool {
	return c.root == "" || root == "" || c.root == root
}

type fileEventReq struct {
	root string
	kind string
	path string
}

// Broker fans workspace events out to SSE clients.
//
// The run loop owns the client set, the message sequence and the per-root
// index throttle; public methods talk to it over channels.
type Broker struct {
	indexMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	fileEventCh   chan fileEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits index.updated at most once per
// indexThrottle for each workspace.
func NewBroker(indexThrottle time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}

	b := &Broker{
		indexMin:      indexThrottle,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		fileEventCh:   make(chan fileEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func format(seq uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]client)
	lastIndex := make(map[string]time.Time)
	var seq uint64

	broadcast := func(event Event) {
		seq++
		msg, err := format(seq, event)
		if err != nil {
			return
		}
		for ch, c := range clients {
			if !c.wants(event.Root) {
				continue
			}
			select {
			case ch <- msg:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.fileEventCh:
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "file." + req.kind, Root: req.root, Data: map[string]string{"path": req.path}})
			default:
				continue
			}

			now := time.Now()
			if now.Sub(lastIndex[req.root]) >= b.indexMin {
				lastIndex[req.root] = now
				broadcast(Event{Type: "index.updated", Root: req.root, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client interested in root, or in every workspace when
// root is empty.
func (b *Broker) Subscribe(root string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{ch: ch, root: root}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
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

// Publish sends an event to the clients interested in its root.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishFileEvent reports a watched stylesheet or document change in the
// workspace at root, followed by a throttled index.updated event.
func (b *Broker) PublishFileEvent(root, kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.fileEventCh <- fileEventReq{root: root, kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishSessionEvent forwards a workspace session event: "reconciled"
// becomes workspace.reconciled and "projected" becomes projection.written.
func (b *Broker) PublishSessionEvent(kind, root, path string) {
	var typ string
	switch kind {
	case "reconciled":
		typ = "workspace.reconciled"
	case "projected":
		typ = "projection.written"
	default:
		return
	}
	b.Publish(Event{Type: typ, Root: root, Data: map[string]string{"path": path}})
}

// ServeHTTP streams events to one client until it disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("root"))
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
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

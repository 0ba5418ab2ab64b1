// Package events subscribes to the backend's push notifications. The
// transport contract is thin: deliver opaque "activity created" frames,
// at-most-once, unordered, possibly not at all. The sync core's health
// monitor compensates for drops, so the subscriber only has to hand frames
// over and keep reconnecting.
package events

import (
	"log/slog"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives the raw payload of one pushed frame.
type Handler func(raw []byte)

const (
	reconnectBase = 1 * time.Second
	reconnectMax  = 30 * time.Second
)

// Subscriber maintains a websocket connection to the push endpoint and
// forwards every text frame to the handler. Dial and read failures are
// retried with doubling backoff; Close stops the loop.
type Subscriber struct {
	url     string
	header  http.Header
	handler Handler

	mu       stdsync.Mutex
	conn     *websocket.Conn
	started  bool
	stopOnce stdsync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSubscriber builds a subscriber for the given websocket URL. apiKey,
// when non-empty, is sent as a bearer token on the dial request.
func NewSubscriber(wsURL, apiKey string, handler Handler) *Subscriber {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	return &Subscriber{
		url:     wsURL,
		header:  header,
		handler: handler,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the subscription loop.
func (s *Subscriber) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.run()
}

func (s *Subscriber) run() {
	defer close(s.done)

	backoff := reconnectBase
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.url, s.header)
		if err != nil {
			slog.Warn("push subscription dial failed", "url", s.url, "retry_in", backoff, "err", err)
			if !s.wait(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		slog.Info("push subscription connected", "url", s.url)
		backoff = reconnectBase

		s.readLoop(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()

		select {
		case <-s.stop:
			return
		default:
			slog.Warn("push subscription lost, reconnecting", "retry_in", backoff)
			if !s.wait(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
		}
	}
}

// readLoop forwards frames until the connection errors out.
func (s *Subscriber) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handler(data)
	}
}

// wait sleeps for d unless the subscriber is stopped first.
func (s *Subscriber) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectMax {
		d = reconnectMax
	}
	return d
}

// Close stops the loop and closes any live connection. Safe to call more
// than once.
func (s *Subscriber) Close() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	conn := s.conn
	started := s.started
	s.mu.Unlock()
	if conn != nil {
		// Unblocks the read loop.
		conn.Close()
	}
	if started {
		<-s.done
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Spectator feed
//
// Every round event the game publishes is also pushed, as JSON, to any
// websocket client connected to /feed/ws. The feed never carries the
// answer of a round that is still running: labels and map links appear
// only in round_resolved messages.
//
// The most recently revealed map link is also offered as a QR code at
// /feed/qr, so people watching a stream can open it on a phone.

package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/streetguess/game"
)

const (
	feedBuffer   = 16
	feedQueue    = 64
	qrSize       = 320
	feedReadSize = 512
	writeWait    = 10 * time.Second
)

// SessionInfoMessage is sent to each client right after it connects.
type SessionInfoMessage struct {
	Type          string `json:"type"` // "session_info"
	Version       string `json:"version"`
	LastReference string `json:"last_reference,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan any
}

// Feed fans round events out to websocket spectators. Clients that fall
// behind are dropped rather than slowing the game down.
type Feed struct {
	clients map[*feedClient]bool

	register chan *feedClient
	unreg    chan *feedClient
	events   chan game.Event
	done     chan struct{}

	mu            sync.RWMutex
	lastReference string

	logger *zap.Logger
}

func newFeed(logger *zap.Logger) *Feed {
	return &Feed{
		clients:  make(map[*feedClient]bool),
		register: make(chan *feedClient),
		unreg:    make(chan *feedClient),
		events:   make(chan game.Event, feedQueue),
		done:     make(chan struct{}),
		logger:   logger.Named("feed"),
	}
}

// RoundEvent queues e for broadcast without blocking the caller.
func (f *Feed) RoundEvent(e game.Event) {
	select {
	case f.events <- e:
	case <-f.done:
	default:
		f.logger.Warn("feed queue full, dropping event", zap.String("type", string(e.Type)))
	}
}

func (f *Feed) run(ctx context.Context) error {
	defer f.closeAll()
	defer close(f.done)

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-f.register:
			f.clients[c] = true

			c.send <- SessionInfoMessage{
				Type:          "session_info",
				Version:       releaseVersion,
				LastReference: f.reference(),
			}

		case c := <-f.unreg:
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}

		case e := <-f.events:
			if e.Type == game.EventRoundResolved && e.Reference != "" {
				f.mu.Lock()
				f.lastReference = e.Reference
				f.mu.Unlock()
			}

			for c := range f.clients {
				select {
				case c.send <- e:
				default:
					f.logger.Debug("dropping slow feed client", zap.Stringer("addr", c.conn.RemoteAddr()))
					delete(f.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (f *Feed) reference() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.lastReference
}

func (f *Feed) closeAll() {
	for c := range f.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(f.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveFeed(cfg *Config, f *Feed) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			f.logger.Debug("upgrade failed", zap.Error(err))
			return
		}

		client := &feedClient{
			conn: conn,
			send: make(chan any, feedBuffer),
		}

		select {
		case f.register <- client:
		case <-f.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "FEED: Spectator connected from %s", realIP(r))

		go client.writePump()
		client.readPump(f)
	}
}

// readPump only watches for the connection closing. Spectators have nothing
// to say.
func (c *feedClient) readPump(f *Feed) {
	defer func() {
		select {
		case f.unreg <- c:
		case <-f.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(feedReadSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// serveReferenceQR renders the last revealed map link as a PNG QR code.
func serveReferenceQR(cfg *Config, f *Feed, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		reference := f.reference()
		if reference == "" {
			http.Error(w, "no round has been resolved yet", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(reference, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

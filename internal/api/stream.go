package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentPushes = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WatchSession upgrades to a websocket and pushes a session snapshot to the
// renderer on every engine event. The channel is push-only; inbound frames
// are drained until the renderer goes away.
func (a *API) WatchSession(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	wc := a.watch.add(conn)
	defer a.watch.remove(wc)

	if snap, ok := a.session.Snapshot(); ok {
		_ = wc.writeJSON(Notification{Event: "session.snapshot", Data: toSessionResponse(snap)})
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// watcher tracks the renderers connected to the watch channel.
type watcher struct {
	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func newWatcher() *watcher {
	return &watcher{conns: make(map[*wsConn]struct{})}
}

func (w *watcher) add(conn *websocket.Conn) *wsConn {
	c := &wsConn{conn: conn}

	w.mu.Lock()
	w.conns[c] = struct{}{}
	w.mu.Unlock()

	return c
}

func (w *watcher) remove(c *wsConn) {
	w.mu.Lock()
	delete(w.conns, c)
	w.mu.Unlock()
}

// broadcast pushes one notification to every watching renderer. A slow or
// broken connection only fails its own push.
func (w *watcher) broadcast(ctx context.Context, name string, data any) error {
	n := Notification{Event: name, Data: data}

	w.mu.Lock()
	conns := make([]*wsConn, 0, len(w.conns))
	for c := range w.conns {
		conns = append(conns, c)
	}
	w.mu.Unlock()

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentPushes)

	for _, c := range conns {
		c := c
		eg.Go(func() error {
			if err := c.writeJSON(n); err != nil {
				slog.WarnContext(ctx, "api: push to renderer failed", "event", name, "error", err)
			}
			return nil
		})
	}

	return eg.Wait()
}

// wsConn serializes writes; gorilla connections do not allow concurrent
// writers.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteJSON(v)
}

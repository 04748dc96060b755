package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/pkg/models"
)

// handleStream pushes every newly published snapshot over a WebSocket. The
// connection holds a watcher on the scheduler so snapshots keep coming while
// anyone is listening. The current snapshot, if any, is sent first.
//
//	@Summary		Snapshot stream
//	@Tags			status
//	@Success		101
//	@Router			/status/stream [get]
func (m *Module) handleStream(w http.ResponseWriter, r *http.Request) {
	// The server's write timeout would cut long-lived connections.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	m.streams.Add(1)
	defer m.streams.Done()

	updates, unsubscribe := m.cache.Subscribe()
	defer unsubscribe()
	release := m.cache.Acquire()
	defer release()

	// Client messages are ignored; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	m.logger.Debug("stream opened", zap.String("remote", r.RemoteAddr))
	defer m.logger.Debug("stream closed", zap.String("remote", r.RemoteAddr))

	if snap := m.cache.Snapshot(); snap != nil {
		if err := writeSnapshot(ctx, conn, snap); err != nil {
			m.logStreamError(err)
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCtx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case snap := <-updates:
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				m.logStreamError(err)
				return
			}
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap *models.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, snap)
}

func (m *Module) logStreamError(err error) {
	if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
		return
	}
	m.logger.Warn("stream write failed", zap.Error(err))
}

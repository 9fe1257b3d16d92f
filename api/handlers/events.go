package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/api"
)

const eventWriteTimeout = 10 * time.Second

// HandleEvents streams conversation snapshots over a websocket. The current
// state is sent immediately, then every state change until either side
// disconnects or the conversation is closed.
func (h *ConversationHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	o, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	updates, cancel := o.Subscribe()
	defer cancel()

	// Drain incoming frames so pings and client closes are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	write := func(view api.ConversationView) error {
		wctx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
		defer cancelWrite()
		return wsjson.Write(wctx, conn, view)
	}

	if err := write(api.NewConversationView(o.Snapshot(), o.SenderLabel)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "conversation closed")
				return
			}
			if err := write(api.NewConversationView(snap, o.SenderLabel)); err != nil {
				return
			}
		}
	}
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloquy-ai/colloquy/api"
	"github.com/colloquy-ai/colloquy/types"
)

func TestHandleEvents_StreamsSnapshots(t *testing.T) {
	env := newTestEnv(t)
	id := env.createConversation(t)

	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + srv.URL[len("http"):] + "/v1/conversations/" + id + "/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The current state arrives first, before any intent.
	var first api.ConversationView
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, id, first.ID)
	assert.Equal(t, types.StatusIdle, first.Status)

	rec, _ := env.do(t, http.MethodPost, "/v1/conversations/"+id+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Subsequent frames track the run until completion.
	var view api.ConversationView
	for view.Status != types.StatusCompleted || !view.Summarized {
		require.NoError(t, wsjson.Read(ctx, conn, &view))
	}
	assert.Equal(t, 2, view.TurnCount)
	last := view.Messages[len(view.Messages)-1]
	assert.Equal(t, types.SenderSummary, last.SenderID)
}

func TestHandleEvents_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/v1/conversations/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

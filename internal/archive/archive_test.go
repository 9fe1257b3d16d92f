package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/config"
	"github.com/colloquy-ai/colloquy/conversation"
	"github.com/colloquy-ai/colloquy/types"
)

func openTestArchiver(t *testing.T) *Archiver {
	t.Helper()
	a, err := Open(config.ArchiveConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "archive.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func completedSnapshot(id string) conversation.Snapshot {
	return conversation.Snapshot{
		ID:        id,
		Status:    types.StatusCompleted,
		TurnCount: 4,
		Topic:     "API versioning",
		Agents: []types.Agent{
			{ID: "ada", Name: "Ada"},
			{ID: "ben", Name: "Ben"},
		},
		Transcript: []types.Message{
			types.NewSystemMessage("Conversation started."),
			types.NewMessage("ada", "point one"),
			types.NewMessage("ben", "point two"),
			types.NewMessage(types.SenderSummary, "the summary"),
		},
		Summarized: true,
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.ArchiveConfig{Driver: "oracle"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestSaveAndGet(t *testing.T) {
	a := openTestArchiver(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, completedSnapshot("c1")))

	got, err := a.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "API versioning", got.Topic)
	assert.Equal(t, string(types.StatusCompleted), got.Status)
	assert.Equal(t, 4, got.TurnCount)
	assert.Equal(t, 2, got.AgentCount)
	assert.Equal(t, "the summary", got.Summary)
	assert.WithinDuration(t, time.Now(), got.ArchivedAt, time.Minute)

	require.Len(t, got.Messages, 4)
	// Transcript order survives the round trip.
	for i, m := range got.Messages {
		assert.Equal(t, i, m.Seq)
	}
	assert.Equal(t, "point one", got.Messages[1].Text)
}

func TestSave_ReplacesOnRecompletion(t *testing.T) {
	a := openTestArchiver(t)
	ctx := context.Background()

	snap := completedSnapshot("c1")
	require.NoError(t, a.Save(ctx, snap))

	snap.TurnCount = 6
	snap.Transcript = append(snap.Transcript, types.NewUserMessage("follow-up"))
	require.NoError(t, a.Save(ctx, snap))

	got, err := a.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.TurnCount)
	assert.Len(t, got.Messages, 5)

	// Only one archived conversation, not two.
	list, err := a.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGet_NotFound(t *testing.T) {
	a := openTestArchiver(t)
	_, err := a.Get(context.Background(), "missing")
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestList_NewestFirstAndLimited(t *testing.T) {
	a := openTestArchiver(t)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, a.Save(ctx, completedSnapshot(id)))
		time.Sleep(5 * time.Millisecond)
	}

	list, err := a.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c3", list[0].ID)
	assert.Equal(t, "c2", list[1].ID)
	// Listing does not hydrate transcripts.
	assert.Empty(t, list[0].Messages)
}

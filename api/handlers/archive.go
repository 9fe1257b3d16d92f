package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/api"
	"github.com/colloquy-ai/colloquy/internal/archive"
)

// ArchiveHandler serves archived conversations. Registered only when the
// archive is enabled.
type ArchiveHandler struct {
	archiver *archive.Archiver
	logger   *zap.Logger
}

// NewArchiveHandler creates the handler.
func NewArchiveHandler(archiver *archive.Archiver, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archiver: archiver,
		logger:   logger.With(zap.String("component", "archive_handler")),
	}
}

// RegisterRoutes attaches the archive routes to the mux.
func (h *ArchiveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/archive", h.HandleList)
	mux.HandleFunc("GET /v1/archive/{id}", h.HandleGet)
}

// HandleList returns archived conversations, newest first.
func (h *ArchiveHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	records, err := h.archiver.List(r.Context(), limit)
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	out := make([]api.ArchivedConversation, 0, len(records))
	for _, rec := range records {
		out = append(out, api.ArchivedConversation{
			ID:         rec.ID,
			Topic:      rec.Topic,
			Status:     rec.Status,
			TurnCount:  rec.TurnCount,
			AgentCount: rec.AgentCount,
			Summary:    rec.Summary,
			ArchivedAt: rec.ArchivedAt,
		})
	}
	WriteSuccess(w, out)
}

// HandleGet returns one archived conversation with its transcript.
func (h *ArchiveHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.archiver.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	messages := make([]api.MessageView, 0, len(record.Messages))
	for _, m := range record.Messages {
		messages = append(messages, api.MessageView{
			ID:          m.ID,
			SenderID:    m.SenderID,
			SenderLabel: fallbackLabel(m.SenderID),
			Text:        m.Text,
			Timestamp:   m.Timestamp,
		})
	}

	WriteSuccess(w, struct {
		api.ArchivedConversation
		Messages []api.MessageView `json:"messages"`
	}{
		ArchivedConversation: api.ArchivedConversation{
			ID:         record.ID,
			Topic:      record.Topic,
			Status:     record.Status,
			TurnCount:  record.TurnCount,
			AgentCount: record.AgentCount,
			Summary:    record.Summary,
			ArchivedAt: record.ArchivedAt,
		},
		Messages: messages,
	})
}

// Package gemini implements the generateContent adapter. Gemini carries the
// persona as a systemInstruction object, renames assistant turns to "model",
// and authenticates with a query-parameter key instead of a bearer header.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/tlsutil"
	"github.com/colloquy-ai/colloquy/llm"
	"github.com/colloquy-ai/colloquy/llm/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Config holds the adapter configuration.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// Provider is the Gemini generateContent adapter.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a gemini provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "gemini")),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return string(llm.ProviderGemini) }

type wirePart struct {
	Text string `json:"text"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireRequest struct {
	SystemInstruction *wireContent  `json:"systemInstruction,omitempty"`
	Contents          []wireContent `json:"contents"`
}

type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Completion performs a non-streaming generateContent call.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.DefaultModel)

	body := wireRequest{}
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			body.Contents = append(body.Contents, wireContent{Role: "model", Parts: []wirePart{{Text: m.Content}}})
		default:
			body.Contents = append(body.Contents, wireContent{Role: "user", Parts: []wirePart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &wireContent{Parts: []wirePart{{Text: strings.Join(system, "\n\n")}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(p.cfg.APIKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}

	out := &llm.ChatResponse{
		Provider: p.Name(),
		Model:    model,
		Usage: llm.ChatUsage{
			PromptTokens:     wire.UsageMetadata.PromptTokenCount,
			CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wire.UsageMetadata.TotalTokenCount,
		},
	}
	if len(wire.Candidates) > 0 {
		var parts []string
		for _, part := range wire.Candidates[0].Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		out.Text = strings.Join(parts, "")
	}
	return out, nil
}

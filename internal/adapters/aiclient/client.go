// Package aiclient is a thin client for the OpenAI-compatible vendor API used
// by the job runner for call analysis and simulation generation.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dialcoach/partner-api/config"
)

const maxErrorBodyBytes = 4 * 1024

// Options configures the vendor client.
type Options struct {
	Config     config.AIConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the vendor's chat completion endpoint. All responses are
// requested as JSON objects so downstream storage stays structured.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a vendor client.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.Config.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("AI base URL is required")
	}
	if opts.Config.APIKey == "" {
		return nil, errors.New("AI API key is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Config.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "ai_client")
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.Config.APIKey,
		model:   opts.Config.Model,
		http:    hc,
		logger:  logger,
	}, nil
}

// CallAnalysis is the structured result of analyzing one sales call.
type CallAnalysis struct {
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Score        float64  `json:"score"`
}

// AnalyzeCallInput carries the call material to analyze. Exactly one of
// Transcript or AudioURL is expected; the vendor transcribes audio itself.
type AnalyzeCallInput struct {
	CallType   string
	Transcript string
	AudioURL   string
}

const analyzeSystemPrompt = `You are a sales coaching assistant. Analyze the ` +
	`provided sales call and respond with a JSON object containing: "summary" ` +
	`(string), "strengths" (array of strings), "improvements" (array of ` +
	`strings), and "score" (number between 0 and 100).`

// AnalyzeCall scores one sales call.
func (c *Client) AnalyzeCall(ctx context.Context, in AnalyzeCallInput) (*CallAnalysis, error) {
	var b strings.Builder
	if in.CallType != "" {
		fmt.Fprintf(&b, "Call type: %s\n\n", in.CallType)
	}
	switch {
	case in.Transcript != "":
		fmt.Fprintf(&b, "Transcript:\n%s", in.Transcript)
	case in.AudioURL != "":
		fmt.Fprintf(&b, "Audio recording: %s", in.AudioURL)
	default:
		return nil, errors.New("transcript or audio url is required")
	}

	raw, err := c.completeJSON(ctx, analyzeSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var analysis CallAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

// SimulationInput carries the company context for simulation generation.
type SimulationInput struct {
	Questionnaire json.RawMessage
	Scenario      json.RawMessage
}

const simulationSystemPrompt = `You are a sales training assistant. Generate a ` +
	`practice simulation scenario tailored to the company profile. Respond ` +
	`with a JSON object containing: "title" (string), "persona" (object ` +
	`describing the simulated buyer), "objectives" (array of strings), and ` +
	`"opening_line" (string).`

// GenerateSimulation produces a practice scenario for a company's reps.
func (c *Client) GenerateSimulation(ctx context.Context, in SimulationInput) (json.RawMessage, error) {
	var b strings.Builder
	b.WriteString("Company questionnaire:\n")
	if len(in.Questionnaire) > 0 {
		b.Write(in.Questionnaire)
	} else {
		b.WriteString("{}")
	}
	if len(in.Scenario) > 0 {
		b.WriteString("\n\nRequested scenario constraints:\n")
		b.Write(in.Scenario)
	}

	return c.completeJSON(ctx, simulationSystemPrompt, b.String())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// completeJSON runs one chat completion in JSON mode and returns the raw
// content of the first choice.
func (c *Client) completeJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && c.logger != nil {
			c.logger.Warn("close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("vendor returned no choices")
	}

	content := json.RawMessage(out.Choices[0].Message.Content)
	if !json.Valid(content) {
		return nil, errors.New("vendor returned non-JSON content")
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "chat completion finished",
			"model", c.model,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return content, nil
}

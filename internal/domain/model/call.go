package model

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallStatus tracks analysis progress of a recorded call.
type CallStatus string

const (
	// CallStatusPending indicates the call is queued for analysis.
	CallStatusPending CallStatus = "pending"
	// CallStatusAnalyzing indicates analysis is in flight.
	CallStatusAnalyzing CallStatus = "analyzing"
	// CallStatusAnalyzed indicates transcript and scores are available.
	CallStatusAnalyzed CallStatus = "analyzed"
	// CallStatusFailed indicates analysis could not complete.
	CallStatusFailed CallStatus = "failed"
)

// Call is a recorded sales conversation submitted for analysis.
type Call struct {
	ID         string          `json:"id"                   db:"id"`
	CompanyID  string          `json:"company_id"           db:"company_id"`
	AgentID    string          `json:"agent_id"             db:"agent_id"`
	CallType   string          `json:"call_type"            db:"call_type"`
	AudioURL   *string         `json:"audio_url,omitempty"  db:"audio_url"`
	Transcript *string         `json:"transcript,omitempty" db:"transcript"`
	Analysis   json.RawMessage `json:"analysis,omitempty"   db:"analysis"`
	Score      *float64        `json:"score,omitempty"      db:"score"`
	Status     CallStatus      `json:"status"               db:"status"`
	CreatedAt  time.Time       `json:"created_at"           db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"           db:"updated_at"`
}

// AnalyzeCallRequest asks for async analysis of one call recording or
// transcript. Exactly one of AudioURL or Transcript must be set.
type AnalyzeCallRequest struct {
	CompanyID      string  `json:"company_id"`
	AgentID        string  `json:"agent_id"`
	CallType       string  `json:"call_type,omitempty"`
	AudioURL       *string `json:"audio_url,omitempty"`
	Transcript     *string `json:"transcript,omitempty"`
	WebhookURL     *string `json:"webhook_url,omitempty"`
	IdempotencyKey *string `json:"-"`
}

// Validate validates the AnalyzeCallRequest fields.
func (r *AnalyzeCallRequest) Validate() error {
	if _, err := uuid.Parse(r.CompanyID); err != nil {
		return errors.New("company id must be a valid UUID")
	}
	if _, err := uuid.Parse(r.AgentID); err != nil {
		return errors.New("agent id must be a valid UUID")
	}
	hasAudio := r.AudioURL != nil && *r.AudioURL != ""
	hasTranscript := r.Transcript != nil && strings.TrimSpace(*r.Transcript) != ""
	if hasAudio == hasTranscript {
		return errors.New("exactly one of audio_url or transcript is required")
	}
	if hasAudio {
		u, err := url.Parse(*r.AudioURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("audio url must be an absolute http(s) URL")
		}
	}
	return nil
}

// SimulationRequest asks for async generation of a practice scenario.
type SimulationRequest struct {
	CompanyID      string          `json:"company_id"`
	AgentID        *string         `json:"agent_id,omitempty"`
	Scenario       json.RawMessage `json:"scenario,omitempty"`
	WebhookURL     *string         `json:"webhook_url,omitempty"`
	IdempotencyKey *string         `json:"-"`
}

// Validate validates the SimulationRequest fields.
func (r *SimulationRequest) Validate() error {
	if _, err := uuid.Parse(r.CompanyID); err != nil {
		return errors.New("company id must be a valid UUID")
	}
	if r.AgentID != nil && *r.AgentID != "" {
		if _, err := uuid.Parse(*r.AgentID); err != nil {
			return errors.New("agent id must be a valid UUID")
		}
	}
	if len(r.Scenario) > 0 && !json.Valid(r.Scenario) {
		return errors.New("scenario must be valid JSON")
	}
	return nil
}

package jobrunner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dialcoach/partner-api/internal/adapters/aiclient"
	"github.com/dialcoach/partner-api/internal/domain/model"
)

type callAnalysisPayload struct {
	CallID    string `json:"call_id"`
	CompanyID string `json:"company_id"`
	AgentID   string `json:"agent_id"`
}

type callAnalysisResult struct {
	CallID  string  `json:"call_id"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// handleCallAnalysis runs vendor analysis for one submitted call. The call row
// tracks progress independently of the job so partners polling the call see
// analyzing/analyzed/failed without touching the job API.
func (r *Runner) handleCallAnalysis(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	var payload callAnalysisPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if payload.CallID == "" {
		return nil, fmt.Errorf("missing call_id in job payload")
	}

	call, err := r.calls.GetByID(ctx, payload.CallID)
	if err != nil {
		return nil, fmt.Errorf("load call: %w", err)
	}

	if _, err := r.calls.MarkAnalyzing(ctx, call.ID); err != nil {
		return nil, fmt.Errorf("mark analyzing: %w", err)
	}

	in := aiclient.AnalyzeCallInput{CallType: call.CallType}
	if call.Transcript != nil {
		in.Transcript = *call.Transcript
	}
	if call.AudioURL != nil {
		in.AudioURL = *call.AudioURL
	}

	analysis, err := r.ai.AnalyzeCall(ctx, in)
	if err != nil {
		if markErr := r.calls.MarkFailed(ctx, call.ID); markErr != nil {
			r.logger.ErrorContext(ctx, "mark call failed error", "call_id", call.ID, "error", markErr)
		}
		return nil, fmt.Errorf("analyze call: %w", err)
	}

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	if err := r.calls.StoreAnalysis(ctx, call.ID, call.Transcript, analysisJSON, &analysis.Score); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}

	result, err := json.Marshal(callAnalysisResult{
		CallID:  call.ID,
		Score:   analysis.Score,
		Summary: analysis.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return result, nil
}

type simulationPayload struct {
	CompanyID string          `json:"company_id"`
	AgentID   *string         `json:"agent_id,omitempty"`
	Scenario  json.RawMessage `json:"scenario,omitempty"`
}

type simulationResult struct {
	CompanyID  string          `json:"company_id"`
	AgentID    *string         `json:"agent_id,omitempty"`
	Simulation json.RawMessage `json:"simulation"`
}

// handleSimulation generates a practice scenario grounded in the company's
// onboarding questionnaire.
func (r *Runner) handleSimulation(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	var payload simulationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if payload.CompanyID == "" {
		return nil, fmt.Errorf("missing company_id in job payload")
	}

	company, err := r.companies.GetByID(ctx, payload.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}

	simulation, err := r.ai.GenerateSimulation(ctx, aiclient.SimulationInput{
		Questionnaire: company.Questionnaire,
		Scenario:      payload.Scenario,
	})
	if err != nil {
		return nil, fmt.Errorf("generate simulation: %w", err)
	}

	result, err := json.Marshal(simulationResult{
		CompanyID:  company.ID,
		AgentID:    payload.AgentID,
		Simulation: simulation,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return result, nil
}

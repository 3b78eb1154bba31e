//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Valid(t *testing.T) {
	assert.True(t, JobTypeCallAnalysis.Valid())
	assert.True(t, JobTypeSimulation.Valid())
	assert.False(t, JobType("batch_analysis").Valid())
	assert.False(t, JobType("").Valid())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	err := jt.UnmarshalText([]byte(" Call_Analysis "))
	require.NoError(t, err)
	assert.Equal(t, JobTypeCallAnalysis, jt)

	err = jt.UnmarshalText([]byte("unknown"))
	assert.Error(t, err)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestCreateJobRequest_Validate(t *testing.T) {
	payload := json.RawMessage(`{"call_id":"abc"}`)

	tests := []struct {
		name        string
		req         CreateJobRequest
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid call analysis",
			req:  CreateJobRequest{Type: JobTypeCallAnalysis, Payload: payload},
		},
		{
			name:        "invalid type",
			req:         CreateJobRequest{Type: "export", Payload: payload},
			expectError: true,
			errorMsg:    "invalid job type",
		},
		{
			name:        "missing payload",
			req:         CreateJobRequest{Type: JobTypeSimulation},
			expectError: true,
			errorMsg:    "payload is required",
		},
		{
			name:        "negative max retries",
			req:         CreateJobRequest{Type: JobTypeSimulation, Payload: payload, MaxRetries: -1},
			expectError: true,
			errorMsg:    "max retries",
		},
		{
			name: "valid company id",
			req: CreateJobRequest{
				Type:      JobTypeCallAnalysis,
				Payload:   payload,
				CompanyID: stringPtr("550e8400-e29b-41d4-a716-446655440000"),
			},
		},
		{
			name: "invalid company id",
			req: CreateJobRequest{
				Type:      JobTypeCallAnalysis,
				Payload:   payload,
				CompanyID: stringPtr("not-a-uuid"),
			},
			expectError: true,
			errorMsg:    "company id must be a valid UUID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJob_StatusResponse(t *testing.T) {
	lastErr := "vendor unavailable"
	j := Job{
		ID:        "job-1",
		Type:      JobTypeCallAnalysis,
		Status:    JobStatusFailed,
		LastError: &lastErr,
	}

	resp := j.StatusResponse()
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, JobStatusFailed, resp.Status)
	require.NotNil(t, resp.LastError)
	assert.Equal(t, lastErr, *resp.LastError)
	assert.Nil(t, resp.Result)
}

func stringPtr(s string) *string { return &s }

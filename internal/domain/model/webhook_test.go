package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookDelivery_Exhausted(t *testing.T) {
	d := WebhookDelivery{AttemptCount: 0, MaxAttempts: 5}
	assert.False(t, d.Exhausted())

	d.AttemptCount = 4
	assert.False(t, d.Exhausted())

	d.AttemptCount = 5
	assert.True(t, d.Exhausted())
}

func TestDeliveryStatus_Valid(t *testing.T) {
	assert.True(t, DeliveryStatusPending.Valid())
	assert.True(t, DeliveryStatusDelivered.Valid())
	assert.True(t, DeliveryStatusFailed.Valid())
	assert.False(t, DeliveryStatus("retrying").Valid())
}

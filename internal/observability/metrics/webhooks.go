package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/dialcoach/partner-api/internal/observability/errors"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
)

// WebhookMetric captures details about a webhook delivery attempt for metric emission.
type WebhookMetric struct {
	EventType  string
	Result     string
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Err        error
}

// EmitWebhookDelivery emits standardised webhook delivery metrics.
func EmitWebhookDelivery(sink statsd.Sink, in WebhookMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"event_type": in.EventType,
		"result":     in.Result,
	}
	if in.StatusCode > 0 {
		tags["status_code"] = strconv.Itoa(in.StatusCode)
	}
	if in.Attempt > 0 {
		tags["attempt"] = strconv.Itoa(in.Attempt)
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("webhook.delivery", 1, tags)

	if in.Duration > 0 {
		sink.Timing("webhook.delivery_duration", in.Duration, CloneTags(tags))
	}
}

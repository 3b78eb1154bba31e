package model

import "time"

// RequestLogEntry is one observed inbound partner request. PartnerKeyID is nil
// when the request never passed the auth gate.
type RequestLogEntry struct {
	ID             string    `json:"id"                        db:"id"`
	PartnerKeyID   *string   `json:"partner_key_id,omitempty"  db:"partner_key_id"`
	Method         string    `json:"method"                    db:"method"`
	Path           string    `json:"path"                      db:"path"`
	Status         int       `json:"status"                    db:"status"`
	DurationMS     int64     `json:"duration_ms"               db:"duration_ms"`
	IP             string    `json:"ip"                        db:"ip"`
	UserAgent      string    `json:"user_agent"                db:"user_agent"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"                db:"created_at"`
}

// RequestLogQuery filters the admin request-log listing. Zero values mean
// "no constraint" except Limit, which callers should clamp.
type RequestLogQuery struct {
	PartnerKeyID string     `json:"partner_key_id,omitempty"`
	Method       string     `json:"method,omitempty"`
	PathPrefix   string     `json:"path_prefix,omitempty"`
	MinStatus    int        `json:"min_status,omitempty"`
	Since        *time.Time `json:"since,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

package events

import "time"

// Type discriminates dashboard events.
type Type string

const (
	// TypeAnonymization is emitted after a request body was anonymized.
	TypeAnonymization Type = "anonymization"
	// TypeRequestLog is emitted for every proxied request.
	TypeRequestLog Type = "request_log"
	// TypeSystemStatus carries periodic gateway health snapshots.
	TypeSystemStatus Type = "system_status"
	// TypeConnection is emitted when dashboard clients come and go.
	TypeConnection Type = "connection"
)

// Event is the envelope sent to dashboard clients.
type Event struct {
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data"`
}

// AnonymizationEvent reports what was replaced in one request. It carries
// counts only; placeholder values and originals never leave the gateway.
type AnonymizationEvent struct {
	RequestID         string         `json:"request_id"`
	SessionID         string         `json:"session_id,omitempty"`
	Provider          string         `json:"provider"`
	Path              string         `json:"path"`
	EntityCounts      map[string]int `json:"entity_counts"`
	TotalPlaceholders int            `json:"total_placeholders"`
	Risk              string         `json:"risk"`
	ProcessingMS      float64        `json:"processing_ms"`
}

// RequestLogEvent reports one proxied request.
type RequestLogEvent struct {
	RequestID    string        `json:"request_id"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	StatusCode   int           `json:"status_code"`
	ClientIP     string        `json:"client_ip"`
	Duration     time.Duration `json:"duration"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

// SystemStatusEvent is a periodic health snapshot.
type SystemStatusEvent struct {
	Status            string `json:"status"`
	Uptime            string `json:"uptime"`
	TotalRequests     int64  `json:"total_requests"`
	TotalPlaceholders int64  `json:"total_placeholders"`
	ConnectedClients  int    `json:"connected_clients"`
}

// ConnectionEvent reports dashboard client connects and disconnects.
type ConnectionEvent struct {
	Action   string `json:"action"` // connected or disconnected
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

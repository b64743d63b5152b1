// Package audit records graph mutations for traceability. Emission is
// fire-and-forget from the domain services' point of view: an audit
// failure never fails the mutation that triggered it.
package audit

import (
	"context"
	"time"
)

// Action identifies what happened to the graph.
type Action string

const (
	ActionPersonCreated Action = "person_created"
	ActionPersonUpdated Action = "person_updated"
	ActionPersonDeleted Action = "person_deleted"
	ActionEdgeAdded     Action = "edge_added"
	ActionEdgeRemoved   Action = "edge_removed"
	ActionChartPurged   Action = "chart_purged"
)

// Event is one recorded mutation. Keep it transport-agnostic so sinks can
// fan out (memory, Kafka).
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ChartID   string    `json:"chart_id"`
	CallerID  string    `json:"caller_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	PersonID  int64     `json:"person_id,omitempty"`
	ParentID  int64     `json:"parent_id,omitempty"`
	ChildID   int64     `json:"child_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink accepts emitted events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

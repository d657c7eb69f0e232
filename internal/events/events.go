// Package events defines the messages exchanged between the workspace
// authority and its clients.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/wsmenu/internal/features"
)

// Type names an event kind and version.
type Type string

const (
	TypeFeatureToggled Type = "workspace.feature_toggled.v1"
)

// Status is the authority's verdict on a write.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Meta describes an emitted event.
type Meta struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Envelope wraps a payload with its Meta.
type Envelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// NewMeta stamps a fresh id and time.
func NewMeta(t Type, producer string) Meta {
	return Meta{
		ID:       uuid.NewString(),
		Type:     t,
		Time:     time.Now().UTC(),
		Producer: producer,
	}
}

// EchoError explains a rejected write.
type EchoError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// FeatureToggled is the authority's echo of a feature write. Version is the
// record version after the write; it is monotonic per workspace.
type FeatureToggled struct {
	WorkspaceID string     `json:"workspace_id"`
	Feature     string     `json:"feature"`
	Enabled     bool       `json:"enabled"`
	WriteID     string     `json:"write_id,omitempty"`
	Version     int64      `json:"version"`
	Status      Status     `json:"status"`
	Error       *EchoError `json:"error,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ParsedFeature resolves the Feature field.
func (e FeatureToggled) ParsedFeature() (features.Feature, error) {
	return features.Parse(e.Feature)
}

// RoutingKey returns the topic key the echo is published under.
func (e FeatureToggled) RoutingKey() string {
	return RoutingKey(e.WorkspaceID)
}

// RoutingKey builds the topic key for a workspace's feature echoes.
func RoutingKey(workspaceID string) string {
	return "workspace." + workspaceID + ".feature"
}

// ValidationIssue names one invalid field.
type ValidationIssue struct{ Field, Reason string }

// ValidationError collects every issue found in a message.
type ValidationError struct{ Issues []ValidationIssue }

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + ": " + is.Reason
	}
	return fmt.Sprintf("invalid event: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) add(f, r string) { e.Issues = append(e.Issues, ValidationIssue{f, r}) }

// Validate checks the echo is well formed.
func (e *FeatureToggled) Validate() error {
	ve := &ValidationError{}

	if e.WorkspaceID == "" {
		ve.add("workspace_id", "required")
	}
	if _, err := e.ParsedFeature(); err != nil {
		ve.add("feature", "unknown")
	}
	if e.Version <= 0 {
		ve.add("version", "must be positive")
	}
	switch e.Status {
	case StatusAccepted:
		if e.Error != nil {
			ve.add("error", "must be empty for accepted")
		}
	case StatusRejected:
		if e.Error == nil || e.Error.Code == "" {
			ve.add("error.code", "required for rejected")
		}
	case "":
		ve.add("status", "required")
	default:
		ve.add("status", "unknown")
	}

	if len(ve.Issues) > 0 {
		return ve
	}
	return nil
}

// NewAccepted builds an accepted echo.
func NewAccepted(workspaceID string, f features.Feature, enabled bool, writeID string, version int64) FeatureToggled {
	return FeatureToggled{
		WorkspaceID: workspaceID,
		Feature:     f.Key(),
		Enabled:     enabled,
		WriteID:     writeID,
		Version:     version,
		Status:      StatusAccepted,
		UpdatedAt:   time.Now().UTC(),
	}
}

// NewRejected builds a rejected echo. enabled is the authority's current value.
func NewRejected(workspaceID string, f features.Feature, enabled bool, writeID string, version int64, code, msg string) FeatureToggled {
	return FeatureToggled{
		WorkspaceID: workspaceID,
		Feature:     f.Key(),
		Enabled:     enabled,
		WriteID:     writeID,
		Version:     version,
		Status:      StatusRejected,
		Error:       &EchoError{Code: code, Message: msg},
		UpdatedAt:   time.Now().UTC(),
	}
}

// EventMeta exposes the envelope metadata to transports.
func (e Envelope[T]) EventMeta() Meta { return e.Meta }

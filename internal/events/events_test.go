package events

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/marcus/wsmenu/internal/features"
)

func TestValidateAccepted(t *testing.T) {
	e := NewAccepted("ws-1", features.Tags, true, "w-1", 3)
	if err := e.Validate(); err != nil {
		t.Fatalf("valid echo rejected: %v", err)
	}
	if e.Feature != "areTagsEnabled" {
		t.Errorf("feature = %q", e.Feature)
	}
	if e.RoutingKey() != "workspace.ws-1.feature" {
		t.Errorf("routing key = %q", e.RoutingKey())
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	tests := []struct {
		name   string
		ev     FeatureToggled
		fields []string
	}{
		{"empty", FeatureToggled{}, []string{"workspace_id", "feature", "version", "status"}},
		{"rejected without code", FeatureToggled{WorkspaceID: "ws", Feature: "tags", Version: 1, Status: StatusRejected}, []string{"error.code"}},
		{"accepted with error", FeatureToggled{WorkspaceID: "ws", Feature: "tags", Version: 1, Status: StatusAccepted, Error: &EchoError{Code: "x"}}, []string{"error"}},
		{"unknown status", FeatureToggled{WorkspaceID: "ws", Feature: "tags", Version: 1, Status: "maybe"}, []string{"status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if len(ve.Issues) != len(tt.fields) {
				t.Fatalf("issues = %+v, want fields %v", ve.Issues, tt.fields)
			}
			for i, f := range tt.fields {
				if ve.Issues[i].Field != f {
					t.Errorf("issue[%d] = %s, want %s", i, ve.Issues[i].Field, f)
				}
			}
			if !strings.HasPrefix(err.Error(), "invalid event: ") {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}

func TestEnvelopeJSON(t *testing.T) {
	env := Envelope[FeatureToggled]{
		Meta: NewMeta(TypeFeatureToggled, "test"),
		Data: NewRejected("ws-1", features.Taxes, false, "w-9", 4, "forbidden", "not allowed"),
	}
	if env.Meta.ID == "" || env.Meta.Time.IsZero() {
		t.Fatalf("meta not stamped: %+v", env.Meta)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Envelope[FeatureToggled]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Meta.Type != TypeFeatureToggled || back.Data.Error == nil || back.Data.Error.Code != "forbidden" {
		t.Errorf("round trip lost data: %+v", back)
	}
	f, err := back.Data.ParsedFeature()
	if err != nil || f != features.Taxes {
		t.Errorf("ParsedFeature = %v, %v", f, err)
	}
}

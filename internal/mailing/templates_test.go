package mailing

import (
	"strings"
	"testing"
)

func TestRenderDefaultSteps(t *testing.T) {
	ts := NewTemplateService()

	msg := &DripMessage{
		LeadID:        "lead-1",
		Email:         "ada@example.com",
		Name:          "Ada",
		MessageNumber: 1,
		MaxMessages:   5,
	}
	if err := ts.Render(msg); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(msg.Subject, "Ada") {
		t.Errorf("Subject = %q, want the lead's name interpolated", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Ada") {
		t.Errorf("Body = %q, want the lead's name interpolated", msg.Body)
	}
}

func TestRenderDefaultFilter(t *testing.T) {
	ts := NewTemplateService()

	msg := &DripMessage{MessageNumber: 1, MaxMessages: 3, Email: "x@example.com"}
	if err := ts.Render(msg); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(msg.Subject, "there") {
		t.Errorf("Subject = %q, want the default greeting for an empty name", msg.Subject)
	}
}

func TestRenderStepCycling(t *testing.T) {
	ts := NewTemplateService()
	ts.SetSteps([]StepTemplate{
		{Subject: "step one", Body: "b"},
		{Subject: "step two", Body: "b"},
	})

	for _, tt := range []struct {
		n    int
		want string
	}{
		{1, "step one"},
		{2, "step two"},
		{3, "step one"}, // wraps past the last step
		{4, "step two"},
	} {
		msg := &DripMessage{MessageNumber: tt.n, MaxMessages: 4}
		if err := ts.Render(msg); err != nil {
			t.Fatalf("Render(message %d) error: %v", tt.n, err)
		}
		if msg.Subject != tt.want {
			t.Errorf("message %d subject = %q, want %q", tt.n, msg.Subject, tt.want)
		}
	}
}

func TestRenderCountersAvailable(t *testing.T) {
	ts := NewTemplateService()
	ts.SetSteps([]StepTemplate{
		{Subject: "{{ message_number }} of {{ max_messages }}", Body: "for {{ email }}"},
	})

	msg := &DripMessage{MessageNumber: 2, MaxMessages: 5, Email: "ada@example.com"}
	if err := ts.Render(msg); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if msg.Subject != "2 of 5" {
		t.Errorf("Subject = %q, want \"2 of 5\"", msg.Subject)
	}
	if msg.Body != "for ada@example.com" {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestRenderBadTemplate(t *testing.T) {
	ts := NewTemplateService()
	ts.SetSteps([]StepTemplate{{Subject: "{{ unclosed", Body: "b"}})

	msg := &DripMessage{MessageNumber: 1, MaxMessages: 1}
	if err := ts.Render(msg); err == nil {
		t.Error("Render() should fail on an unparsable template")
	}
}

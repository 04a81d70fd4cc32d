package mailing

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// StepTemplate holds the Liquid source for one step of the drip sequence.
type StepTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// defaultSteps is the built-in sequence used when no templates are
// configured. Leads with more messages than steps cycle back through.
var defaultSteps = []StepTemplate{
	{
		Subject: `Welcome, {{ name | default: "there" }}!`,
		Body:    "Hi {{ name }},\n\nThanks for reaching out. We'll be in touch over the next few days.\n",
	},
	{
		Subject: `Still thinking it over, {{ name | default: "there" }}?`,
		Body:    "Hi {{ name }},\n\nJust checking in. Reply to this message any time.\n",
	},
	{
		Subject: "A quick follow-up",
		Body:    "Hi {{ name }},\n\nThis is message {{ message_number }} of {{ max_messages }} in your sequence.\n",
	},
}

// TemplateService renders per-step drip message content with Liquid.
// Parsed templates are cached by source; rendering is concurrency-safe.
type TemplateService struct {
	engine *liquid.Engine
	steps  []StepTemplate
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a template service with the built-in step
// sequence and the custom filters registered.
func NewTemplateService() *TemplateService {
	ts := &TemplateService{
		engine: liquid.NewEngine(),
		steps:  defaultSteps,
	}

	// Default value filter: {{ name | default: "there" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	return ts
}

// SetSteps replaces the step sequence. Call before the worker starts.
func (ts *TemplateService) SetSteps(steps []StepTemplate) {
	if len(steps) > 0 {
		ts.steps = steps
	}
}

// Render fills msg.Subject and msg.Body from the template for the
// message's step. Step n uses template (n-1) mod len(steps).
func (ts *TemplateService) Render(msg *DripMessage) error {
	step := ts.steps[(msg.MessageNumber-1)%len(ts.steps)]

	bindings := map[string]interface{}{
		"name":           msg.Name,
		"email":          msg.Email,
		"message_number": msg.MessageNumber,
		"max_messages":   msg.MaxMessages,
	}

	subject, err := ts.render(step.Subject, bindings)
	if err != nil {
		return fmt.Errorf("render subject for message %d: %w", msg.MessageNumber, err)
	}
	body, err := ts.render(step.Body, bindings)
	if err != nil {
		return fmt.Errorf("render body for message %d: %w", msg.MessageNumber, err)
	}

	msg.Subject = subject
	msg.Body = body
	return nil
}

func (ts *TemplateService) render(source string, bindings map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := ts.cache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := ts.engine.ParseString(source)
		if err != nil {
			return "", err
		}
		ts.cache.Store(source, parsed)
		tpl = parsed
	}

	out, err := tpl.Render(bindings)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

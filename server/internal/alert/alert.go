package alert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/common/model"
)

// Alert statuses as reported by Alertmanager.
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// Well-known severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Label and annotation names the card generator gives meaning to.
const (
	LabelAlertName  model.LabelName = model.AlertNameLabel
	LabelSeverity   model.LabelName = "severity"
	LabelPrometheus model.LabelName = "prometheus"

	AnnotationDescription model.LabelName = "description"
	AnnotationRunbookURL  model.LabelName = "runbook_url"
)

// Record is one firing or resolved alert with the batch-wide labels and
// annotations already folded in. Records are built once per request and
// never mutated afterwards.
//
// The JSON form of a Record is also the opaque payload carried by an
// interactive card and handed back on callback; see Encode and Decode.
type Record struct {
	Status       string         `json:"status"`
	Labels       model.LabelSet `json:"labels"`
	Annotations  model.LabelSet `json:"annotations"`
	StartsAt     time.Time      `json:"startsAt"`
	EndsAt       time.Time      `json:"endsAt"`
	GeneratorURL string         `json:"generatorURL,omitempty"`
	ExternalURL  string         `json:"externalURL"`
}

// Name returns the alertname label.
func (r Record) Name() string { return string(r.Labels[LabelAlertName]) }

// Severity returns the severity label, or "" if absent.
func (r Record) Severity() string { return string(r.Labels[LabelSeverity]) }

// Resolved reports whether the alert has stopped firing.
func (r Record) Resolved() bool { return r.Status == StatusResolved }

// Annotation returns the named annotation, or "" if absent.
func (r Record) Annotation(name model.LabelName) string {
	return string(r.Annotations[name])
}

// Fingerprint identifies the alert by its label set.
func (r Record) Fingerprint() model.Fingerprint { return r.Labels.Fingerprint() }

// Encode serializes r into the interactive-card payload. The output is
// deterministic: label and annotation keys are emitted in sorted order and
// timestamps as RFC 3339 with their original offset.
func Encode(r Record) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("alert: encode: %w", err)
	}
	return string(b), nil
}

// Decode parses a payload previously produced by Encode.
func Decode(s string) (Record, error) {
	var r Record
	if s == "" {
		return r, fmt.Errorf("alert: decode: empty payload")
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return r, fmt.Errorf("alert: decode: %w", err)
	}
	return r, nil
}

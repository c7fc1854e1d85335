package alert

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/common/model"
)

const batchJSON = `{
  "version": "4",
  "groupKey": "{}:{alertname=\"HighCPU\"}",
  "status": "firing",
  "receiver": "lark",
  "groupLabels": {"alertname": "HighCPU"},
  "commonLabels": {"alertname": "HighCPU", "severity": "warning", "cluster": "prod"},
  "commonAnnotations": {"description": "cpu is high", "runbook_url": "https://runbooks/cpu"},
  "externalURL": "https://am.example",
  "alerts": [
    {
      "status": "firing",
      "labels": {"instance": "node-1", "severity": "critical"},
      "annotations": {"description": "cpu > 90% on node-1"},
      "startsAt": "2024-01-01T00:00:00Z",
      "endsAt": "0001-01-01T00:00:00Z",
      "generatorURL": "https://prom.example/graph?g0.expr=up"
    },
    {
      "status": "resolved",
      "labels": {"instance": "node-2"},
      "annotations": {},
      "startsAt": "2024-01-01T00:00:00Z",
      "endsAt": "2024-01-01T01:00:00+08:00"
    }
  ]
}`

func decodeBatch(t *testing.T) *Webhook {
	t.Helper()
	var w Webhook
	if err := json.Unmarshal([]byte(batchJSON), &w); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	return &w
}

func collect(w *Webhook) []Record {
	var out []Record
	for r := range Normalize(w) {
		out = append(out, r)
	}
	return out
}

func TestNormalize_OneRecordPerAlert(t *testing.T) {
	w := decodeBatch(t)
	if got := len(collect(w)); got != len(w.Alerts) {
		t.Fatalf("records: got %d, want %d", got, len(w.Alerts))
	}
}

func TestNormalize_AlertLabelsOverrideCommon(t *testing.T) {
	recs := collect(decodeBatch(t))

	want0 := model.LabelSet{"alertname": "HighCPU", "severity": "critical", "cluster": "prod", "instance": "node-1"}
	if !reflect.DeepEqual(recs[0].Labels, want0) {
		t.Errorf("labels[0]: got %v, want %v", recs[0].Labels, want0)
	}
	want1 := model.LabelSet{"alertname": "HighCPU", "severity": "warning", "cluster": "prod", "instance": "node-2"}
	if !reflect.DeepEqual(recs[1].Labels, want1) {
		t.Errorf("labels[1]: got %v, want %v", recs[1].Labels, want1)
	}
}

func TestNormalize_AnnotationsMergeTheSameWay(t *testing.T) {
	recs := collect(decodeBatch(t))

	if got := recs[0].Annotation(AnnotationDescription); got != "cpu > 90% on node-1" {
		t.Errorf("description[0]: got %q", got)
	}
	if got := recs[0].Annotation(AnnotationRunbookURL); got != "https://runbooks/cpu" {
		t.Errorf("runbook_url[0]: got %q", got)
	}
	if got := recs[1].Annotation(AnnotationDescription); got != "cpu is high" {
		t.Errorf("description[1]: got %q", got)
	}
}

func TestNormalize_CopiesExternalURLAndTimes(t *testing.T) {
	recs := collect(decodeBatch(t))

	for i, r := range recs {
		if r.ExternalURL != "https://am.example" {
			t.Errorf("externalURL[%d]: got %q", i, r.ExternalURL)
		}
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !recs[0].StartsAt.Equal(want) {
		t.Errorf("startsAt: got %v, want %v", recs[0].StartsAt, want)
	}
	if want := time.Date(2023, 12, 31, 17, 0, 0, 0, time.UTC); !recs[1].EndsAt.Equal(want) {
		t.Errorf("endsAt: got %v, want %v", recs[1].EndsAt, want)
	}
	if recs[0].GeneratorURL != "https://prom.example/graph?g0.expr=up" {
		t.Errorf("generatorURL: got %q", recs[0].GeneratorURL)
	}
	if recs[1].GeneratorURL != "" {
		t.Errorf("generatorURL[1]: got %q, want empty", recs[1].GeneratorURL)
	}
}

func TestNormalize_AnyLabelName(t *testing.T) {
	var w Webhook
	err := json.Unmarshal([]byte(`{
  "groupLabels": {"k8s.namespace": "prod"},
  "commonLabels": {"k8s.namespace": "prod", "app-name": "api"},
  "commonAnnotations": {"runbook-url": "https://runbooks/api"},
  "alerts": [
    {"status": "firing", "labels": {"alertname": "X", "k8s.pod": "a"}, "annotations": {"summary.text": "s"}},
    {"status": "firing", "labels": {"alertname": "Y", "服务": "支付"}}
  ]
}`), &w)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	recs := collect(&w)
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	want := model.LabelSet{"alertname": "X", "k8s.pod": "a", "k8s.namespace": "prod", "app-name": "api"}
	if !reflect.DeepEqual(recs[0].Labels, want) {
		t.Errorf("labels: got %v, want %v", recs[0].Labels, want)
	}
	if got := recs[0].Annotation("runbook-url"); got != "https://runbooks/api" {
		t.Errorf("runbook-url: got %q", got)
	}
	if got := recs[0].Annotation("summary.text"); got != "s" {
		t.Errorf("summary.text: got %q", got)
	}
	if got := recs[1].Labels["服务"]; got != "支付" {
		t.Errorf("utf-8 label: got %q", got)
	}
	if got := w.GroupLabels["k8s.namespace"]; got != "prod" {
		t.Errorf("groupLabels: got %q", got)
	}

	payload, err := Encode(recs[0])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(back.Labels, recs[0].Labels) {
		t.Errorf("round-trip labels: got %v, want %v", back.Labels, recs[0].Labels)
	}
	if !reflect.DeepEqual(back.Annotations, recs[0].Annotations) {
		t.Errorf("round-trip annotations: got %v, want %v", back.Annotations, recs[0].Annotations)
	}
}

func TestNormalize_DoesNotMutateCommonSets(t *testing.T) {
	w := decodeBatch(t)
	_ = collect(w)
	if got := w.CommonLabels["severity"]; got != "warning" {
		t.Errorf("common severity: got %q, want warning", got)
	}
	if _, ok := w.CommonLabels["instance"]; ok {
		t.Error("common labels gained instance")
	}
}

func TestNormalize_NoCommonSets(t *testing.T) {
	w := &Webhook{Alerts: []WebhookAlert{{
		Status: StatusFiring,
		Labels: model.LabelSet{"alertname": "A"},
	}}}
	recs := collect(w)
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	if want := (model.LabelSet{"alertname": "A"}); !reflect.DeepEqual(recs[0].Labels, want) {
		t.Errorf("labels: got %v, want %v", recs[0].Labels, want)
	}
	if len(recs[0].Annotations) != 0 {
		t.Errorf("annotations: got %v, want empty", recs[0].Annotations)
	}
}

func TestNormalize_StopsWhenConsumerStops(t *testing.T) {
	n := 0
	for range Normalize(decodeBatch(t)) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("yielded: got %d, want 1", n)
	}
}

func TestNormalize_NilPayload(t *testing.T) {
	if got := collect(nil); len(got) != 0 {
		t.Errorf("records: got %d, want 0", len(got))
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	rec := collect(decodeBatch(t))[0]

	payload, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Status != rec.Status {
		t.Errorf("status: got %q, want %q", got.Status, rec.Status)
	}
	if !reflect.DeepEqual(got.Labels, rec.Labels) {
		t.Errorf("labels: got %v, want %v", got.Labels, rec.Labels)
	}
	if !reflect.DeepEqual(got.Annotations, rec.Annotations) {
		t.Errorf("annotations: got %v, want %v", got.Annotations, rec.Annotations)
	}
	if !got.StartsAt.Equal(rec.StartsAt) || !got.EndsAt.Equal(rec.EndsAt) {
		t.Errorf("times: got %v/%v, want %v/%v", got.StartsAt, got.EndsAt, rec.StartsAt, rec.EndsAt)
	}
	if got.GeneratorURL != rec.GeneratorURL || got.ExternalURL != rec.ExternalURL {
		t.Errorf("urls: got %q/%q, want %q/%q", got.GeneratorURL, got.ExternalURL, rec.GeneratorURL, rec.ExternalURL)
	}
	if got.Fingerprint() != rec.Fingerprint() {
		t.Errorf("fingerprint: got %v, want %v", got.Fingerprint(), rec.Fingerprint())
	}
}

func TestEncode_Deterministic(t *testing.T) {
	rec := collect(decodeBatch(t))[0]
	a, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, _ := Encode(rec)
	if a != b {
		t.Errorf("Encode not deterministic:\n%s\n%s", a, b)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{"", "{not json"} {
		if _, err := Decode(in); err == nil {
			t.Errorf("Decode(%q): expected error", in)
		}
	}
}

func TestRecordAccessors(t *testing.T) {
	r := Record{
		Status: StatusResolved,
		Labels: model.LabelSet{"alertname": "DiskFull", "severity": "info"},
	}
	if r.Name() != "DiskFull" {
		t.Errorf("Name: got %q", r.Name())
	}
	if r.Severity() != "info" {
		t.Errorf("Severity: got %q", r.Severity())
	}
	if !r.Resolved() {
		t.Error("Resolved: got false, want true")
	}
}

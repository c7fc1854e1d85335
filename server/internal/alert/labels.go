package alert

import (
	"encoding/json"

	"github.com/prometheus/common/model"
)

// labelMap is the wire form of a label or annotation set. Unlike
// model.LabelSet it accepts any name, so UTF-8 label names such as
// "k8s.pod" and annotation keys such as "runbook-url" decode as sent.
type labelMap map[string]string

func (m labelMap) set() model.LabelSet {
	if m == nil {
		return nil
	}
	ls := make(model.LabelSet, len(m))
	for k, v := range m {
		ls[model.LabelName(k)] = model.LabelValue(v)
	}
	return ls
}

// UnmarshalJSON decodes w without validating label names.
func (w *Webhook) UnmarshalJSON(b []byte) error {
	type plain Webhook
	var aux struct {
		plain
		GroupLabels       labelMap `json:"groupLabels"`
		CommonLabels      labelMap `json:"commonLabels"`
		CommonAnnotations labelMap `json:"commonAnnotations"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*w = Webhook(aux.plain)
	w.GroupLabels = aux.GroupLabels.set()
	w.CommonLabels = aux.CommonLabels.set()
	w.CommonAnnotations = aux.CommonAnnotations.set()
	return nil
}

// UnmarshalJSON decodes a without validating label names.
func (a *WebhookAlert) UnmarshalJSON(b []byte) error {
	type plain WebhookAlert
	var aux struct {
		plain
		Labels      labelMap `json:"labels"`
		Annotations labelMap `json:"annotations"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*a = WebhookAlert(aux.plain)
	a.Labels = aux.Labels.set()
	a.Annotations = aux.Annotations.set()
	return nil
}

// UnmarshalJSON decodes r without validating label names.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		Labels      labelMap `json:"labels"`
		Annotations labelMap `json:"annotations"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	r.Labels = aux.Labels.set()
	r.Annotations = aux.Annotations.set()
	return nil
}

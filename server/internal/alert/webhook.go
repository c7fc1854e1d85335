package alert

import (
	"iter"
	"time"

	"github.com/prometheus/common/model"
)

// Webhook is the payload Alertmanager POSTs to a webhook receiver.
// Reference: https://prometheus.io/docs/alerting/latest/configuration/#webhook_config
type Webhook struct {
	Version           string         `json:"version"`
	GroupKey          string         `json:"groupKey"`
	TruncatedAlerts   int            `json:"truncatedAlerts"`
	Status            string         `json:"status"`
	Receiver          string         `json:"receiver"`
	GroupLabels       model.LabelSet `json:"groupLabels"`
	CommonLabels      model.LabelSet `json:"commonLabels"`
	CommonAnnotations model.LabelSet `json:"commonAnnotations"`
	ExternalURL       string         `json:"externalURL"`
	Alerts            []WebhookAlert `json:"alerts"`
}

// WebhookAlert is one element of Webhook.Alerts. Its label and annotation
// sets may omit entries that Alertmanager hoisted into the common sets.
type WebhookAlert struct {
	Status       string         `json:"status"`
	Labels       model.LabelSet `json:"labels"`
	Annotations  model.LabelSet `json:"annotations"`
	StartsAt     time.Time      `json:"startsAt"`
	EndsAt       time.Time      `json:"endsAt"`
	GeneratorURL string         `json:"generatorURL"`
	Fingerprint  string         `json:"fingerprint"`
}

// Normalize yields one Record per alert in w, in payload order.
//
// Labels are the common labels overridden key-wise by the alert's own
// labels; annotations are merged the same way. ExternalURL is copied into
// every record. Nothing is validated here: a missing description only shows
// up when the card is rendered.
func Normalize(w *Webhook) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		if w == nil {
			return
		}
		for _, a := range w.Alerts {
			rec := Record{
				Status:       a.Status,
				Labels:       w.CommonLabels.Merge(a.Labels),
				Annotations:  w.CommonAnnotations.Merge(a.Annotations),
				StartsAt:     a.StartsAt,
				EndsAt:       a.EndsAt,
				GeneratorURL: a.GeneratorURL,
				ExternalURL:  w.ExternalURL,
			}
			if !yield(rec) {
				return
			}
		}
	}
}

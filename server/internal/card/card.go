package card

import (
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/common/model"

	"github.com/larkbridge/larkbridge/server/internal/alert"
	"github.com/larkbridge/larkbridge/server/internal/silence"
)

// Theme is the colour scheme of a card header.
type Theme string

const (
	ThemeSuccess Theme = "success"
	ThemeDanger  Theme = "danger"
	ThemeWarning Theme = "warning"
	ThemeInfo    Theme = "info"
	ThemeDefault Theme = "default"
)

// TimeLayout is the layout used for every timestamp on a card.
const TimeLayout = "2006-01-02 15:04:05 MST"

// DefaultLocation is the fixed UTC+8 zone cards are rendered in unless
// Options.Location says otherwise.
var DefaultLocation = time.FixedZone("CST", 8*60*60)

// Options controls Generate.
type Options struct {
	// WithActions adds the silence menu. It is ignored for resolved alerts.
	WithActions bool

	// Location is the zone timestamps are shown in. Nil means DefaultLocation.
	Location *time.Location
}

// Field is one labelled value in the card body.
type Field struct {
	Label string
	Value string
	Short bool
}

// Label is one dimension label shown under the body.
type Label struct {
	Name  string
	Value string
}

// Link points back at a source system.
type Link struct {
	Icon  string
	Label string
	URL   string
}

// Interactive is the silence control block of a firing alert's card.
type Interactive struct {
	Placeholder string
	Options     []silence.Option
	// Payload is alert.Encode of the record the card was generated from.
	// It comes back verbatim in the callback.
	Payload string
}

// Document is the provider-agnostic rendering of one alert.
type Document struct {
	Theme       Theme
	Title       string
	Fields      []Field
	ExtraLabels []Label
	Links       []Link
	Interactive *Interactive
}

var severityThemes = map[string]Theme{
	alert.SeverityCritical: ThemeDanger,
	alert.SeverityWarning:  ThemeWarning,
	alert.SeverityInfo:     ThemeInfo,
}

var severityTitles = map[string]string{
	alert.SeverityCritical: "🚨 集群报警",
	alert.SeverityWarning:  "⚠️ 集群风险",
	alert.SeverityInfo:     "ℹ️ 集群提示",
}

const (
	resolvedTitle    = "✅ 报警解除"
	unknownTitle     = "📢 集群通知"
	silencePrompt    = "暂时屏蔽报警"
	startTimeLabel   = "🕐 开始时间："
	endTimeLabel     = "🕐 结束时间："
	alertTypeLabel   = "🏷️ 事件类型："
	descriptionLabel = "📝 事件描述："
)

// coreLabels are shown elsewhere on the card and left out of ExtraLabels.
var coreLabels = map[model.LabelName]bool{
	alert.LabelAlertName:  true,
	alert.LabelSeverity:   true,
	alert.LabelPrometheus: true,
}

// ThemeFor returns the header theme for an alert. Unknown or missing
// severities get ThemeDefault.
func ThemeFor(rec alert.Record) Theme {
	if rec.Resolved() {
		return ThemeSuccess
	}
	if t, ok := severityThemes[rec.Severity()]; ok {
		return t
	}
	return ThemeDefault
}

// TitleFor returns the header title for an alert.
func TitleFor(rec alert.Record) string {
	prefix := unknownTitle
	if rec.Resolved() {
		prefix = resolvedTitle
	} else if p, ok := severityTitles[rec.Severity()]; ok {
		prefix = p
	}
	return fmt.Sprintf("%s: %s", prefix, rec.Name())
}

// Generate builds the card for rec.
func Generate(rec alert.Record, opts Options) (*Document, error) {
	loc := opts.Location
	if loc == nil {
		loc = DefaultLocation
	}

	timeField := Field{Label: startTimeLabel, Value: FormatTime(rec.StartsAt, loc), Short: true}
	if rec.Resolved() {
		timeField = Field{Label: endTimeLabel, Value: FormatTime(rec.EndsAt, loc), Short: true}
	}

	doc := &Document{
		Theme: ThemeFor(rec),
		Title: TitleFor(rec),
		Fields: []Field{
			timeField,
			{Label: alertTypeLabel, Value: rec.Name(), Short: true},
			{Label: descriptionLabel, Value: rec.Annotation(alert.AnnotationDescription)},
		},
		ExtraLabels: extraLabels(rec.Labels),
		Links:       links(rec),
	}

	if opts.WithActions && !rec.Resolved() {
		payload, err := alert.Encode(rec)
		if err != nil {
			return nil, fmt.Errorf("card: %w", err)
		}
		doc.Interactive = &Interactive{
			Placeholder: silencePrompt,
			Options:     silence.Options,
			Payload:     payload,
		}
	}
	return doc, nil
}

// FormatTime renders t in loc using TimeLayout.
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimeLayout)
}

// extraLabels returns the non-core labels sorted by name.
func extraLabels(ls model.LabelSet) []Label {
	var out []Label
	for n, v := range ls {
		if coreLabels[n] {
			continue
		}
		out = append(out, Label{Name: string(n), Value: string(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func links(rec alert.Record) []Link {
	out := []Link{{Icon: "🚨", Label: "alertmanager", URL: rec.ExternalURL}}
	if rec.GeneratorURL != "" {
		out = append(out, Link{Icon: "🔗", Label: "prometheus", URL: rec.GeneratorURL})
	}
	if rb := rec.Annotation(alert.AnnotationRunbookURL); rb != "" {
		out = append(out, Link{Icon: "📒", Label: "runbook", URL: rb})
	}
	return out
}

package silence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/common/model"
)

// ErrUnknownOption is returned by ParseOption for a value outside the menu.
var ErrUnknownOption = errors.New("silence: unknown option")

// Option is one entry of the silence menu shown on an interactive card.
type Option struct {
	Value    string
	Label    string
	Duration time.Duration
}

// Options is the fixed, ordered silence menu.
var Options = []Option{
	{Value: "time_30m", Label: "屏蔽30分钟", Duration: 30 * time.Minute},
	{Value: "time_1h", Label: "屏蔽1小时", Duration: 60 * time.Minute},
	{Value: "time_4h", Label: "屏蔽4小时", Duration: 240 * time.Minute},
	{Value: "time_24h", Label: "屏蔽24小时", Duration: 1440 * time.Minute},
}

// ParseOption returns the duration for a menu value. There is no default:
// anything not in Options is an error.
func ParseOption(value string) (time.Duration, error) {
	for _, o := range Options {
		if o.Value == value {
			return o.Duration, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownOption, value)
}

// Matcher is an Alertmanager label matcher.
type Matcher struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IsRegex bool   `json:"isRegex"`
	IsEqual bool   `json:"isEqual"`
}

// Silence is the body of POST /api/v2/silences.
type Silence struct {
	Matchers  []Matcher `json:"matchers"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	CreatedBy string    `json:"createdBy"`
	Comment   string    `json:"comment"`
}

// FromLabels builds a silence of length d starting at start with one exact
// matcher per label. Every label is matched, not just the identifying ones,
// so the silence covers exactly the alert it was created from.
func FromLabels(labels model.LabelSet, start time.Time, d time.Duration, createdBy, comment string) Silence {
	names := make([]string, 0, len(labels))
	for n := range labels {
		names = append(names, string(n))
	}
	sort.Strings(names)

	matchers := make([]Matcher, 0, len(names))
	for _, n := range names {
		matchers = append(matchers, Matcher{
			Name:    n,
			Value:   string(labels[model.LabelName(n)]),
			IsRegex: false,
			IsEqual: true,
		})
	}

	start = start.UTC().Truncate(time.Second)
	return Silence{
		Matchers:  matchers,
		StartsAt:  start,
		EndsAt:    start.Add(d),
		CreatedBy: createdBy,
		Comment:   comment,
	}
}

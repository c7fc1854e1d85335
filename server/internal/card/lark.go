package card

import (
	"fmt"
	"strings"
)

// LarkCard is a Lark (Feishu) interactive message card.
// Reference: https://open.feishu.cn/document/common-capabilities/message-card/message-cards-content
type LarkCard struct {
	Config   LarkConfig    `json:"config"`
	Header   LarkHeader    `json:"header"`
	Elements []LarkElement `json:"elements"`
}

type LarkConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type LarkHeader struct {
	Template string   `json:"template"`
	Title    LarkText `json:"title"`
}

type LarkText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// LarkElement is a card module. Which fields are set depends on Tag:
// "div" uses Fields, "markdown" uses Content, "action" uses Actions and
// "hr" uses none.
type LarkElement struct {
	Tag     string       `json:"tag"`
	Fields  []LarkField  `json:"fields,omitempty"`
	Content string       `json:"content,omitempty"`
	Actions []LarkAction `json:"actions,omitempty"`
}

type LarkField struct {
	IsShort bool     `json:"is_short"`
	Text    LarkText `json:"text"`
}

type LarkAction struct {
	Tag         string            `json:"tag"`
	Placeholder *LarkText         `json:"placeholder,omitempty"`
	Options     []LarkOption      `json:"options,omitempty"`
	Value       map[string]string `json:"value,omitempty"`
}

type LarkOption struct {
	Text  LarkText `json:"text"`
	Value string   `json:"value"`
}

// ActionValueKey is the key of the select_static value map that carries
// the encoded alert.
const ActionValueKey = "alert"

var larkTemplates = map[Theme]string{
	ThemeSuccess: "green",
	ThemeDanger:  "red",
	ThemeWarning: "yellow",
	ThemeInfo:    "blue",
	ThemeDefault: "",
}

// LarkTemplate returns the header colour Lark uses for t.
func LarkTemplate(t Theme) string { return larkTemplates[t] }

// Lark renders doc as a Lark interactive card.
func Lark(doc *Document) *LarkCard {
	c := &LarkCard{
		Config: LarkConfig{WideScreenMode: true},
		Header: LarkHeader{
			Template: LarkTemplate(doc.Theme),
			Title:    LarkText{Tag: "plain_text", Content: doc.Title},
		},
	}

	body := LarkElement{Tag: "div"}
	for i, f := range doc.Fields {
		// Blank full-width row between the short fields and the description.
		if i == len(doc.Fields)-1 {
			body.Fields = append(body.Fields, LarkField{Text: LarkText{Tag: "lark_md"}})
		}
		body.Fields = append(body.Fields, LarkField{
			IsShort: f.Short,
			Text:    LarkText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", f.Label, f.Value)},
		})
	}
	c.Elements = append(c.Elements, body)

	if len(doc.ExtraLabels) > 0 {
		lines := make([]string, 0, len(doc.ExtraLabels))
		for _, l := range doc.ExtraLabels {
			lines = append(lines, fmt.Sprintf("**%s:** %s", l.Name, l.Value))
		}
		c.Elements = append(c.Elements,
			LarkElement{Tag: "hr"},
			LarkElement{Tag: "markdown", Content: strings.Join(lines, "\n")},
		)
	}

	links := make([]string, 0, len(doc.Links))
	for _, l := range doc.Links {
		links = append(links, fmt.Sprintf("%s [%s](%s)", l.Icon, l.Label, l.URL))
	}
	c.Elements = append(c.Elements, LarkElement{Tag: "markdown", Content: strings.Join(links, " | ")})

	if in := doc.Interactive; in != nil {
		sel := LarkAction{
			Tag:         "select_static",
			Placeholder: &LarkText{Tag: "plain_text", Content: in.Placeholder},
			Value:       map[string]string{ActionValueKey: in.Payload},
		}
		for _, o := range in.Options {
			sel.Options = append(sel.Options, LarkOption{
				Text:  LarkText{Tag: "plain_text", Content: o.Label},
				Value: o.Value,
			})
		}
		c.Elements = append(c.Elements, LarkElement{Tag: "action", Actions: []LarkAction{sel}})
	}
	return c
}

package format

import (
	"fmt"
	"strings"

	"github.com/miuzhaii/replygate/internal/history"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// Formatter renders workspace entities for the CLI.
type Formatter interface {
	FormatPersonas(personas []history.Persona, defaultID string) (string, error)
	FormatPersona(p *history.Persona, isDefault bool) (string, error)
	FormatBindings(bindings []history.ChannelBinding) (string, error)
}

// personaView is the serialized shape shared by the json and yaml formatters.
type personaView struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Default bool   `json:"default" yaml:"default"`
	Content string `json:"content" yaml:"content"`
}

func personaViews(personas []history.Persona, defaultID string) []personaView {
	views := make([]personaView, len(personas))
	for i, p := range personas {
		views[i] = personaView{
			ID:      p.ID,
			Name:    p.Name,
			Default: p.ID == defaultID,
			Content: p.Content,
		}
	}
	return views
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

package format

import (
	"encoding/json"

	"github.com/miuzhaii/replygate/internal/history"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatPersonas(personas []history.Persona, defaultID string) (string, error) {
	data, err := json.MarshalIndent(personaViews(personas, defaultID), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *JSONFormatter) FormatPersona(p *history.Persona, isDefault bool) (string, error) {
	if p == nil {
		return "null", nil
	}
	view := personaView{ID: p.ID, Name: p.Name, Default: isDefault, Content: p.Content}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *JSONFormatter) FormatBindings(bindings []history.ChannelBinding) (string, error) {
	data, err := json.MarshalIndent(bindings, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package format

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miuzhaii/replygate/internal/history"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatPersonas(personas []history.Persona, defaultID string) (string, error) {
	data, err := yaml.Marshal(personaViews(personas, defaultID))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *YAMLFormatter) FormatPersona(p *history.Persona, isDefault bool) (string, error) {
	if p == nil {
		return "null", nil
	}
	view := personaView{ID: p.ID, Name: p.Name, Default: isDefault, Content: p.Content}
	data, err := yaml.Marshal(view)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *YAMLFormatter) FormatBindings(bindings []history.ChannelBinding) (string, error) {
	data, err := yaml.Marshal(bindings)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

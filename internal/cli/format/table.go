package format

import (
	"github.com/miuzhaii/replygate/internal/history"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1).
			Width(20),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1).
			Width(20),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1).
			Width(20),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) FormatPersonas(personas []history.Persona, defaultID string) (string, error) {
	if len(personas) == 0 {
		return "No personas found", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers("ID", "Name", "Default", "Content")

	for _, p := range personas {
		marker := ""
		if p.ID == defaultID {
			marker = "*"
		}
		t.Row(
			p.ID,
			truncateString(p.Name, 20),
			marker,
			truncateString(p.Content, 40),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatPersona(p *history.Persona, isDefault bool) (string, error) {
	if p == nil {
		return "No persona found", nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	defaultLabel := "no"
	if isDefault {
		defaultLabel = "yes"
	}

	t.Row("ID", p.ID)
	t.Row("Name", p.Name)
	t.Row("Default", defaultLabel)
	t.Row("Content", truncateString(p.Content, 60))

	return t.String(), nil
}

func (f *TableFormatter) FormatBindings(bindings []history.ChannelBinding) (string, error) {
	if len(bindings) == 0 {
		return "No channel bindings found", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers("Conversation", "Persona", "Updated")

	for _, b := range bindings {
		persona := b.PersonaID
		if persona == "" {
			persona = "(default)"
		}
		t.Row(
			truncateString(b.ConversationKey, 25),
			truncateString(persona, 20),
			b.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

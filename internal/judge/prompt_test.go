package judge

import (
	"strings"
	"testing"
)

func TestBuildPromptNamesSuppliedParts(t *testing.T) {
	tests := []struct {
		name        string
		ctx         Context
		wantClause  string
		wantAbsent  []string
		wantPresent []string
	}{
		{
			name:        "persona and transcript",
			ctx:         Context{PersonaText: "A pirate.", TranscriptText: "alice: hi"},
			wantClause:  "Considering the character setting and the recent messages,",
			wantPresent: []string{"Character setting:\nA pirate.", "Recent messages:\nalice: hi"},
		},
		{
			name:        "transcript only",
			ctx:         Context{TranscriptText: "alice: hi"},
			wantClause:  "Considering the recent messages,",
			wantAbsent:  []string{"Character setting:"},
			wantPresent: []string{"Recent messages:\nalice: hi"},
		},
		{
			name:       "nothing supplied",
			ctx:        Context{},
			wantClause: "Decide whether the assistant should reply to this message.",
			wantAbsent: []string{"Character setting:", "Recent messages:", "Considering"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildPrompt(tt.ctx, "ping?")
			if !strings.Contains(got, "Message to evaluate:\nping?") {
				t.Fatalf("prompt missing subject block:\n%s", got)
			}
			if !strings.Contains(got, tt.wantClause) {
				t.Errorf("prompt missing %q:\n%s", tt.wantClause, got)
			}
			if !strings.Contains(got, `{"should_reply": true} or {"should_reply": false}`) {
				t.Errorf("prompt missing response format instruction:\n%s", got)
			}
			for _, s := range tt.wantPresent {
				if !strings.Contains(got, s) {
					t.Errorf("prompt missing %q:\n%s", s, got)
				}
			}
			for _, s := range tt.wantAbsent {
				if strings.Contains(got, s) {
					t.Errorf("prompt should not contain %q:\n%s", s, got)
				}
			}
		})
	}
}

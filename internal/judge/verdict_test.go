package judge

import "testing"

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		want     bool
		wantMode verdictParseMode
	}{
		{
			name:     "plain object true",
			raw:      `{"should_reply": true}`,
			want:     true,
			wantMode: verdictParseModeJSON,
		},
		{
			name:     "plain object false",
			raw:      `{"should_reply": false}`,
			want:     false,
			wantMode: verdictParseModeJSON,
		},
		{
			name:     "fenced json",
			raw:      "```json\n{\"should_reply\": false}\n```",
			want:     false,
			wantMode: verdictParseModeJSON,
		},
		{
			name:     "object inside prose",
			raw:      `Sure, here is my verdict: {"should_reply": false} hope that helps`,
			want:     false,
			wantMode: verdictParseModeExtracted,
		},
		{
			name:     "object missing key",
			raw:      `{"confidence": 0.9}`,
			want:     true,
			wantMode: verdictParseModeJSON,
		},
		{
			name:     "braces inside string values",
			raw:      `noise {"note": "心得 {evil}", "should_reply": false} noise`,
			want:     false,
			wantMode: verdictParseModeExtracted,
		},
		{
			name:     "no json at all",
			raw:      "I think you should definitely reply to this one",
			want:     true,
			wantMode: verdictParseModeDefault,
		},
		{
			name:     "empty output",
			raw:      "",
			want:     true,
			wantMode: verdictParseModeDefault,
		},
		{
			name:     "bare boolean is not an object",
			raw:      "false",
			want:     true,
			wantMode: verdictParseModeDefault,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, mode := parseVerdict(tc.raw)
			if got != tc.want {
				t.Fatalf("verdict = %v, want %v", got, tc.want)
			}
			if mode != tc.wantMode {
				t.Fatalf("parse mode = %s, want %s", mode, tc.wantMode)
			}
		})
	}
}

func TestExtractFirstBalancedJSON(t *testing.T) {
	got := extractFirstBalancedJSON(`prefix {"a": {"b": 1}} {"second": 2}`, '{', '}')
	if got != `{"a": {"b": 1}}` {
		t.Fatalf("extracted %q, want first balanced object", got)
	}

	if got := extractFirstBalancedJSON("no objects here", '{', '}'); got != "" {
		t.Fatalf("extracted %q from object-free input", got)
	}

	// A close before any open must not confuse the scanner.
	got = extractFirstBalancedJSON(`} {"should_reply": true}`, '{', '}')
	if got != `{"should_reply": true}` {
		t.Fatalf("extracted %q, want trailing object", got)
	}
}

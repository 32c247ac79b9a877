package judge

import (
	"encoding/json"
	"strings"
)

type verdictParseMode string

const (
	verdictParseModeJSON      verdictParseMode = "json_object"
	verdictParseModeExtracted verdictParseMode = "json_extracted"
	verdictParseModeDefault   verdictParseMode = "default_reply"
)

type verdictPayload struct {
	ShouldReply *bool `json:"should_reply"`
}

// parseVerdict extracts the reply decision from raw classifier output.
// Anything unparseable defaults to replying so a chatty model never
// silences the assistant.
func parseVerdict(raw string) (bool, verdictParseMode) {
	normalized := cleanModelJSON(raw)

	if value, ok := parseVerdictJSON(normalized); ok {
		return value, verdictParseModeJSON
	}

	if extracted := extractFirstBalancedJSON(normalized, '{', '}'); extracted != "" {
		if value, ok := parseVerdictJSON(extracted); ok {
			return value, verdictParseModeExtracted
		}
	}

	return true, verdictParseModeDefault
}

func parseVerdictJSON(raw string) (bool, bool) {
	if strings.TrimSpace(raw) == "" {
		return false, false
	}
	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return false, false
	}
	if payload.ShouldReply == nil {
		// Valid object without the key still means reply.
		return true, true
	}
	return *payload.ShouldReply, true
}

func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractFirstBalancedJSON(input string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return strings.TrimSpace(input[start : i+1])
			}
		}
	}
	return ""
}

package scope

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/miuzhaii/replygate/internal/message"
)

// Mode selects how group conversations are filtered.
type Mode string

const (
	ModeDisabled  Mode = "disabled"  // every enabled group is in scope
	ModeAllowlist Mode = "allowlist" // only listed groups are in scope
	ModeDenylist  Mode = "denylist"  // listed groups are out of scope
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDisabled:
		return ModeDisabled, nil
	case ModeAllowlist:
		return ModeAllowlist, nil
	case ModeDenylist:
		return ModeDenylist, nil
	default:
		return ModeDisabled, fmt.Errorf("unknown group mode %q", s)
	}
}

type Options struct {
	PrivateEnabled bool
	GroupEnabled   bool
	GroupMode      string
	GroupIDs       []string
}

// Filter decides which conversations the gate manages at all.
// Checks are pure; all normalization happens at construction.
type Filter struct {
	privateEnabled bool
	groupEnabled   bool
	mode           Mode
	groupIDs       map[string]struct{}
}

func New(opts Options) *Filter {
	mode, err := ParseMode(opts.GroupMode)
	if err != nil {
		slog.Warn("Unknown group mode, falling back to disabled", "configured", opts.GroupMode)
		mode = ModeDisabled
	}

	ids := make(map[string]struct{}, len(opts.GroupIDs))
	for _, raw := range opts.GroupIDs {
		id := normalizeID(raw)
		if id == "" {
			continue
		}
		ids[id] = struct{}{}
	}

	return &Filter{
		privateEnabled: opts.PrivateEnabled,
		groupEnabled:   opts.GroupEnabled,
		mode:           mode,
		groupIDs:       ids,
	}
}

// InScope reports whether a conversation should be managed.
// Unknown kinds are never in scope.
func (f *Filter) InScope(kind message.Kind, platformID string) bool {
	switch kind {
	case message.KindPrivate:
		return f.privateEnabled
	case message.KindGroup:
		if !f.groupEnabled {
			return false
		}
		return f.groupAllowed(platformID)
	default:
		return false
	}
}

func (f *Filter) groupAllowed(platformID string) bool {
	id := normalizeID(platformID)
	switch f.mode {
	case ModeAllowlist:
		_, ok := f.groupIDs[id]
		return ok
	case ModeDenylist:
		_, ok := f.groupIDs[id]
		return !ok
	default:
		return true
	}
}

// normalizeID strips conversation-key prefixes so configured entries may be
// either bare platform ids or full keys like "group_123".
func normalizeID(raw string) string {
	id := strings.TrimSpace(raw)
	for _, prefix := range []string{string(message.KindGroup) + "_", string(message.KindPrivate) + "_"} {
		if stripped, found := strings.CutPrefix(id, prefix); found {
			return stripped
		}
	}
	return id
}

package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// Reasoning-call responses are untrusted. The helpers here strip markdown
// wrappers and decode JSON first, then YAML, before any field is read.

// stripFences removes a single fenced code block wrapping the whole text,
// e.g. "```json\n{...}\n```".
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	body := s[nl+1:]
	body = strings.TrimRight(body, " \t\r\n")
	if !strings.HasSuffix(body, "```") {
		return s
	}
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}

// extractJSONObject returns the outermost {...} span of s, or s itself.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// decodeLenient decodes a response into v. JSON is tried on the unwrapped
// text and then on its outermost object; YAML is the fallback.
func decodeLenient(raw string, v any) error {
	text := stripFences(raw)
	if text == "" {
		return fmt.Errorf("%w: empty response", domain.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	if obj := extractJSONObject(text); obj != text {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	}
	if err := yaml.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: neither JSON nor YAML: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

// explorationReply is the structured reply of one exploration iteration.
type explorationReply struct {
	Observations  string   `json:"observations" yaml:"observations"`
	FollowUpPaths []string `json:"follow_up_paths" yaml:"follow_up_paths"`
}

// decodeExploration interprets an exploration response. Structured replies
// are preferred; any other non-empty text is taken as free-text observations.
func decodeExploration(raw string) (explorationReply, error) {
	var reply explorationReply
	if err := decodeLenient(raw, &reply); err == nil &&
		(strings.TrimSpace(reply.Observations) != "" || len(reply.FollowUpPaths) > 0) {
		reply.Observations = strings.TrimSpace(reply.Observations)
		return reply, nil
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return explorationReply{}, fmt.Errorf("%w: empty exploration response", domain.ErrMalformedResponse)
	}
	return explorationReply{Observations: text}, nil
}

// decodeSectionMap decodes an extraction response into a loose key/value map.
// A single top-level "sections" object is unwrapped.
func decodeSectionMap(raw string) (map[string]any, error) {
	var m map[string]any
	if err := decodeLenient(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: extraction response is not an object", domain.ErrMalformedResponse)
	}
	if len(m) == 1 {
		if inner, ok := m["sections"].(map[string]any); ok {
			return inner, nil
		}
	}
	return m, nil
}

// coerceText turns a decoded value into section text.
func coerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			s := coerceText(item)
			if s == "" {
				continue
			}
			if strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "* ") {
				lines = append(lines, s)
			} else {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- **%s**: %s", k, coerceText(t[k])))
		}
		return strings.Join(lines, "\n")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// closeFences appends a closing fence when text leaves a code block open.
func closeFences(text string) (string, bool) {
	open := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			open = !open
		}
	}
	if !open {
		return text, false
	}
	return strings.TrimRight(text, "\n") + "\n```", true
}

package research

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// stripFences removes leading/trailing markdown code fences from model
// output. Models routinely wrap JSON in ```json blocks despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// decodeObject unmarshals the first {...} span of a model response into out.
func decodeObject(response string, out interface{}) error {
	response = stripFences(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// decodeArray unmarshals the first [...] span of a model response into out.
func decodeArray(response string, out interface{}) error {
	response = stripFences(response)
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON array found in response")
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// truncateStr shortens s to at most max bytes for logging and prompts,
// backing up to a rune boundary so multi-byte text is never split.
func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

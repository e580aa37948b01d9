package invoke

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlockRe matches a fenced code block with an optional language tag,
// capturing the body.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ParseObject recovers a JSON object from model output. Strategies, in
// order: direct parse, extraction from a fenced code block, extraction of
// the first balanced JSON object. Fails with ErrUnparsableResponse only
// after all three are exhausted.
func ParseObject(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &out); err == nil {
			return out, nil
		}
	}

	if candidate := firstBalancedObject(trimmed); candidate != "" {
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnparsableResponse, snippet(trimmed))
}

// firstBalancedObject scans for the first '{' and returns the substring up
// to its matching '}', tracking string literals and escapes so braces inside
// strings do not count.
func firstBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// confidenceFields are the candidate field names checked, in order, when
// extracting a confidence scalar from an agent output.
var confidenceFields = []string{"confidence", "confidence_score", "confidenceScore", "certainty"}

// defaultConfidence is assumed when an agent reports none.
const defaultConfidence = 0.7

// ExtractConfidence pulls a confidence scalar out of a parsed output,
// checking the fixed candidate field list and clamping the result to [0,1].
func ExtractConfidence(output map[string]any) float64 {
	for _, field := range confidenceFields {
		if v, ok := output[field]; ok {
			if f, ok := asFloat(v); ok {
				if f < 0 {
					return 0
				}
				if f > 1 {
					return 1
				}
				return f
			}
		}
	}
	return defaultConfidence
}

// asFloat converts a parsed JSON value to float64 if it is numeric.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func snippet(text string) string {
	const max = 120
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

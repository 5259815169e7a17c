package interpretation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConfidencePolicy decides what happens to a confidence outside [0, 1].
type ConfidencePolicy string

const (
	// ConfidenceClamp pulls the value back into range.
	ConfidenceClamp ConfidencePolicy = "clamp"
	// ConfidenceReject fails the result with a schema validation error.
	ConfidenceReject ConfidencePolicy = "reject"
)

// ParseConfidencePolicy accepts "clamp", "reject" or "" (clamp).
func ParseConfidencePolicy(s string) (ConfidencePolicy, error) {
	switch ConfidencePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConfidenceClamp:
		return ConfidenceClamp, nil
	case ConfidenceReject:
		return ConfidenceReject, nil
	default:
		return "", fmt.Errorf("unknown confidence policy %q (allowed: clamp, reject)", s)
	}
}

const fence = "```"

// Parser turns free-form model text into a validated Result.
// It is stateless and safe for concurrent use.
type Parser struct {
	Policy ConfidencePolicy
}

func NewParser(policy ConfidencePolicy) *Parser {
	if policy == "" {
		policy = ConfidenceClamp
	}
	return &Parser{Policy: policy}
}

// Parse extracts the first JSON object from text and validates it.
func (p *Parser) Parse(text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewError(KindEmptyResponse, "model returned no text", nil)
	}

	candidate, ok := "", false
	if inner, fenced := stripFence(text); fenced {
		candidate, ok = firstObject(inner)
	}
	if !ok {
		candidate, ok = firstObject(text)
	}
	if !ok {
		return nil, NewError(KindNoJSONFound, "no balanced JSON object in model text", nil)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, &Error{Kind: KindJSONParseError, Snippet: candidate, Msg: "invalid JSON object", Err: err}
	}

	explanation, err := explanationField(fields)
	if err != nil {
		return nil, err
	}
	confidence, err := p.confidenceField(fields)
	if err != nil {
		return nil, err
	}

	return &Result{
		Explanation:  explanation,
		Confidence:   confidence,
		RawModelText: text,
	}, nil
}

func explanationField(fields map[string]any) (string, error) {
	v, ok := fields["explanation"]
	if !ok || v == nil {
		return "", schemaError("explanation", "missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", schemaError("explanation", fmt.Sprintf("must be a string, got %T", v))
	}
	s = strings.TrimSpace(s)
	// models sometimes quote the sentence a second time
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return "", schemaError("explanation", "must not be empty")
	}
	return s, nil
}

func (p *Parser) confidenceField(fields map[string]any) (float64, error) {
	v, ok := fields["confidence"]
	if !ok || v == nil {
		return 0, schemaError("confidence", "missing")
	}
	c, ok := v.(float64)
	if !ok {
		return 0, schemaError("confidence", fmt.Sprintf("must be a number, got %T", v))
	}
	if c >= 0 && c <= 1 {
		return c, nil
	}
	if p.Policy == ConfidenceReject {
		return 0, schemaError("confidence", fmt.Sprintf("%v is outside [0, 1]", c))
	}
	if c < 0 {
		return 0, nil
	}
	return 1, nil
}

// stripFence returns the body of the first fenced code block, without the
// opening marker, its language tag and the closing marker.
func stripFence(text string) (string, bool) {
	open := strings.Index(text, fence)
	if open < 0 {
		return "", false
	}
	rest := text[open+len(fence):]
	// language tag, e.g. ```json
	i := 0
	for i < len(rest) && rest[i] != '{' && rest[i] != '\n' && rest[i] != ' ' && rest[i] != '\t' && rest[i] != '\r' {
		i++
	}
	rest = rest[i:]
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

// firstObject returns the first balanced {...} region of s. Braces inside
// JSON string literals do not count toward nesting.
func firstObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end >= 0 {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

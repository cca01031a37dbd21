// internal/common/jsonutil/jsonutil.go

// Package jsonutil extracts and validates the JSON payloads that language
// models embed in free text. Models routinely wrap JSON in markdown fences
// or surround it with prose; ExtractJSON recovers the first balanced
// top-level value, and Decode checks it against a JSON schema before
// unmarshaling so malformed payloads fail as one error class.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ExtractJSON returns the first valid top-level JSON object or array found
// in content, after stripping any markdown code fences.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	inString, escaped := false, false
	depth := 0
	start := -1
	bs := []byte(content)

	for i := 0; i < len(bs); i++ {
		c := bs[i]

		if inString {
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			continue
		}

		switch c {
		case '{', '[':
			if depth == 0 {
				start = i
			}
			depth++

		case '}', ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				raw := strings.TrimSpace(content[start : i+1])
				if json.Valid([]byte(raw)) {
					return raw, nil
				}
				// Invalid fragment; keep scanning for the next candidate.
				start = -1
			}
		}
	}

	return "", fmt.Errorf("no valid JSON found in content")
}

// Decode extracts the JSON payload from content, validates it against the
// given schema, and unmarshals it into out. Schema violations and parse
// failures are the same error class to callers: the response shape was
// wrong, fall back.
func Decode(content, schema string, out interface{}) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("payload does not match schema: %s", strings.Join(msgs, "; "))
	}

	return json.Unmarshal([]byte(raw), out)
}

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned by Decode when no strategy in a chain produced a
// value of the requested shape.
var ErrNoJSON = errors.New("no usable JSON in model output")

var (
	fencedObjectPattern  = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")
	fencedArrayPattern   = regexp.MustCompile("```(?:json)?\\s*(\\[[\\s\\S]*\\])\\s*```")
	bracketArrayPattern  = regexp.MustCompile(`\[([\s\S]*?)\]`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// Strategy locates a JSON candidate in model output. Extract reports false
// when the strategy does not apply to the content at all.
type Strategy struct {
	Name    string
	Extract func(content string) (candidate string, ok bool)
}

// Chain is an ordered list of strategies, tried first to last.
type Chain []Strategy

// Direct treats the whole output as JSON.
var Direct = Strategy{
	Name: "direct",
	Extract: func(content string) (string, bool) {
		trimmed := strings.TrimSpace(content)
		return trimmed, trimmed != ""
	},
}

// FencedObject takes the first code fence that wraps a JSON object.
var FencedObject = Strategy{
	Name: "fenced-object",
	Extract: func(content string) (string, bool) {
		m := fencedObjectPattern.FindStringSubmatch(content)
		if len(m) < 2 {
			return "", false
		}
		return cleanJSON(m[1]), true
	},
}

// FencedArray takes the first code fence that wraps a JSON array.
var FencedArray = Strategy{
	Name: "fenced-array",
	Extract: func(content string) (string, bool) {
		m := fencedArrayPattern.FindStringSubmatch(content)
		if len(m) < 2 {
			return "", false
		}
		return cleanJSON(m[1]), true
	},
}

// BracketArray takes the shortest [...] span anywhere in the output and
// re-wraps its inside. It cannot see past a nested closing bracket, so it
// only suits flat arrays of strings.
var BracketArray = Strategy{
	Name: "bracket-array",
	Extract: func(content string) (string, bool) {
		m := bracketArrayPattern.FindStringSubmatch(content)
		if len(m) < 2 {
			return "", false
		}
		return "[" + m[1] + "]", true
	},
}

// ObjectChain is the policy for question payloads.
var ObjectChain = Chain{Direct, FencedObject}

// ArrayChain is the policy for suggestion lists.
var ArrayChain = Chain{Direct, FencedArray, BracketArray}

// Decode runs the chain over content and returns the first candidate that
// unmarshals into T, with the name of the strategy that produced it.
// Each attempt decodes into a fresh value, so a failed attempt never leaks
// fields into the result.
func Decode[T any](chain Chain, content string) (T, string, error) {
	var zero T
	var errs []error

	for _, s := range chain {
		candidate, ok := s.Extract(content)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no match", s.Name))
			continue
		}

		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		return v, s.Name, nil
	}

	return zero, "", fmt.Errorf("%w: %w", ErrNoJSON, errors.Join(errs...))
}

// cleanJSON removes JavaScript-style comments and trailing commas, which
// models add to fenced JSON often enough to matter.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a // comment from one line, leaving // inside
// string values alone:
//
//	"Other",       // the free-text slot  -> "Other",
//	"url": "http://example.com"           -> unchanged
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// Package jsonutil pulls JSON documents out of free-form model output, which
// tends to arrive wrapped in code fences or prose.
package jsonutil

import "strings"

const codeFence = "```"

// ExtractJSON returns the first JSON array or object embedded in raw.
// Arrays win over objects because the extraction contract is array-rooted.
func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := unfence(raw); ok {
		raw = block
	}
	if arr, ok := balanced(raw, '[', ']'); ok {
		return arr, true
	}
	return balanced(raw, '{', '}')
}

// unfence strips a ``` or ```json fence and returns the inner block.
func unfence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		// Unterminated fence: the model ran out of tokens; salvage the remainder.
		end = len(rest)
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:] // language tag line
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

// balanced scans for a delimiter-balanced span starting at the first open rune,
// honoring JSON string escapes.
func balanced(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}

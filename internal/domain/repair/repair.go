// Package repair recovers structured arguments from malformed JSON payloads
// produced by language models. Each stage is a pure, idempotent string
// transform; stages run in order with a parse attempt after each.
package repair

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/layerforge/layerforge/internal/domain"
)

// DefaultMaxContent is the content size beyond which a truncated payload is
// cut at a word boundary instead of re-closed in full.
const DefaultMaxContent = 64 << 10

// TruncationMarker is appended to content cut by RecloseContent.
const TruncationMarker = "\n/* ... truncated by layerforge ... */"

// Stage names reported by Parse.
const (
	StageEscapeControl  = "escape_control_chars"
	StageRecloseContent = "reclose_content"
	StageBalance        = "balance_delimiters"
)

// Stage is one named repair transform.
type Stage struct {
	Name string
	Fn   func(string) string
}

// Pipeline is an ordered list of repair stages.
type Pipeline struct {
	stages []Stage
}

// NewPipeline returns the standard three-stage pipeline with the given content cap.
func NewPipeline(maxContent int) *Pipeline {
	if maxContent <= 0 {
		maxContent = DefaultMaxContent
	}
	return &Pipeline{stages: []Stage{
		{Name: StageEscapeControl, Fn: EscapeControlChars},
		{Name: StageRecloseContent, Fn: RecloseContent(maxContent)},
		{Name: StageBalance, Fn: BalanceDelimiters},
	}}
}

// Stages returns the pipeline's stages in order.
func (p *Pipeline) Stages() []Stage { return p.stages }

var defaultPipeline = NewPipeline(DefaultMaxContent)

// Parse runs the default pipeline.
func Parse(raw string) (map[string]any, string, error) {
	return defaultPipeline.Parse(raw)
}

// Parse decodes raw as a JSON object. When direct decoding fails the stages run
// cumulatively, each followed by a decode attempt. The returned stage name is
// empty when no repair was needed. An empty or null payload decodes to an
// empty map.
func (p *Pipeline) Parse(raw string) (map[string]any, string, error) {
	cur := strings.TrimSpace(raw)
	if cur == "" || cur == "null" {
		return map[string]any{}, "", nil
	}
	m, err := decodeObject(cur)
	if err == nil {
		return m, "", nil
	}
	lastErr := err
	for _, st := range p.stages {
		cur = st.Fn(cur)
		m, err := decodeObject(cur)
		if err == nil {
			return m, st.Name, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w: %v", domain.ErrMalformedPayload, lastErr)
}

func decodeObject(s string) (map[string]any, error) {
	var m map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after object")
	}
	if m == nil {
		return nil, fmt.Errorf("payload is not an object")
	}
	return m, nil
}

// EscapeControlChars escapes raw newlines, tabs and carriage returns inside
// string literals and drops any other control byte found there. Whitespace
// between tokens is left alone.
func EscapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		if !inString {
			if r == '"' {
				inString = true
			}
			b.WriteRune(r)
			continue
		}
		if escaped {
			escaped = false
			if r < 0x20 {
				// A backslash followed by a raw control char: keep the escape
				// meaningful by emitting the escaped form.
				writeEscapedControl(&b, r, true)
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = false
			b.WriteRune(r)
		case r < 0x20:
			writeEscapedControl(&b, r, false)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeEscapedControl(b *strings.Builder, r rune, afterBackslash bool) {
	var esc string
	switch r {
	case '\n':
		esc = "n"
	case '\t':
		esc = "t"
	case '\r':
		esc = "r"
	default:
		if afterBackslash {
			// Neutralize the dangling backslash.
			b.WriteByte('\\')
		}
		return
	}
	if !afterBackslash {
		b.WriteByte('\\')
	} else {
		// The pending backslash was already written; turn it into a literal
		// backslash and emit the escape separately.
		b.WriteString("\\\\")
	}
	b.WriteString(esc)
}

var (
	contentKeyRe  = regexp.MustCompile(`"content"\s*:\s*"`)
	filePathRe    = regexp.MustCompile(`"file_path"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	modeRe        = regexp.MustCompile(`"mode"\s*:\s*"(overwrite|append)"`)
	closingTailRe = regexp.MustCompile(`"\s*}\s*$`)
)

// RecloseContent returns the stage that rebuilds write payloads whose content
// string was cut off. It locates file_path and the start of content
// independently, keeps content up to a trailing quote-and-brace when one
// exists, truncates at a word boundary when the content exceeds maxContent, and
// re-emits a minimal well-formed object. Payloads without both keys, and
// payloads that already parse, are returned unchanged.
func RecloseContent(maxContent int) func(string) string {
	return func(s string) string {
		if json.Valid([]byte(s)) {
			return s
		}
		loc := contentKeyRe.FindStringIndex(s)
		if loc == nil {
			return s
		}
		fp := filePathRe.FindStringSubmatch(s)
		if fp == nil {
			return s
		}

		body := s[loc[1]:]
		if tail := closingTailRe.FindStringIndex(body); tail != nil {
			body = body[:tail[0]]
		} else {
			body = strings.TrimRightFunc(body, unicode.IsSpace)
		}

		if len(body) > maxContent && !strings.HasSuffix(body, jsonEscape(TruncationMarker)) {
			body = cutAtWord(body, maxContent) + jsonEscape(TruncationMarker)
		}
		body = sanitizeStringBody(body)

		var out bytes.Buffer
		out.WriteString(`{"file_path":"`)
		out.WriteString(fp[1])
		out.WriteString(`"`)
		if m := modeRe.FindStringSubmatch(s[:loc[0]]); m != nil {
			out.WriteString(`,"mode":"`)
			out.WriteString(m[1])
			out.WriteString(`"`)
		}
		out.WriteString(`,"content":"`)
		out.WriteString(body)
		out.WriteString(`"}`)
		return out.String()
	}
}

// cutAtWord cuts s to at most max bytes, backing up to the last whitespace so
// neither a word nor an escape sequence is split.
func cutAtWord(s string, max int) string {
	cut := s[:max]
	if i := strings.LastIndexAny(cut, " \t"); i > max/2 {
		cut = cut[:i]
	} else if i := strings.LastIndex(cut, `\n`); i > max/2 {
		cut = cut[:i]
	}
	return cut
}

// sanitizeStringBody makes s usable as the inside of a JSON string literal:
// unescaped quotes are escaped, invalid escape sequences get their backslash
// doubled, and a dangling trailing backslash is dropped.
func sanitizeStringBody(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				continue
			}
			next := s[i+1]
			if next == 'u' && !hasHex4(s[i+2:]) {
				b.WriteString(`\\`)
				continue
			}
			if strings.IndexByte(`"\/bfnrtu`, next) >= 0 {
				b.WriteByte(c)
				b.WriteByte(next)
				i++
				continue
			}
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hasHex4(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func jsonEscape(s string) string {
	data, _ := json.Marshal(s)
	return string(data[1 : len(data)-1])
}

// BalanceDelimiters closes an unterminated string, removes a trailing comma and
// appends the closing braces and brackets still open, innermost first.
func BalanceDelimiters(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if n := len(stack); n > 0 && matches(stack[n-1], c) {
				stack = stack[:n-1]
			}
		}
	}

	out := s
	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}
	trimmed := strings.TrimRightFunc(out, unicode.IsSpace)
	switch {
	case strings.HasSuffix(trimmed, ","):
		out = trimmed[:len(trimmed)-1]
	case strings.HasSuffix(trimmed, ":"):
		out = trimmed + "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

func matches(open, close byte) bool {
	return (open == '{' && close == '}') || (open == '[' && close == ']')
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n?(.*?)```")

// ExtractObject pulls the outermost JSON object out of free text. Code fences
// are stripped, text before the first '{' is dropped, and the object ends where
// its opening brace is balanced. When it never balances the tail is kept so the
// repair stages can close it.
func ExtractObject(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else if i := strings.Index(text, "```"); i >= 0 {
		// Unterminated fence: keep what follows it.
		text = text[i+3:]
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], "{") {
			text = text[nl+1:]
		}
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return strings.TrimSpace(text)
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1]
			}
		}
	}
	return strings.TrimSpace(text[start:])
}

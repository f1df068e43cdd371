package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError is returned when neither the raw text nor its repaired form is
// valid JSON. Repaired carries the text of the last repair attempt so callers
// can log what was tried.
type ParseError struct {
	Strict   error
	Repair   error
	Repaired string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json repair failed: strict: %v; repaired: %v", e.Strict, e.Repair)
}

// Repair parses raw as a JSON object, recovering from the truncation patterns
// large language models produce when their output is cut mid-structure. The
// repair is deterministic: surrounding prose/code fences are stripped, a
// trailing incomplete string literal, value fragment, dangling comma or
// dangling object key is trimmed, and the closers needed to balance every
// unclosed bracket and brace are appended, innermost first. Strict parsing is
// attempted before any of that happens.
func Repair(raw string) (map[string]any, error) {
	s := extract(raw)

	var out map[string]any
	strictErr := json.Unmarshal([]byte(s), &out)
	if strictErr == nil {
		return out, nil
	}

	fixed := balance(trimDangling(s))
	if err := json.Unmarshal([]byte(fixed), &out); err != nil {
		return nil, &ParseError{Strict: strictErr, Repair: err, Repaired: fixed}
	}
	return out, nil
}

// extract cuts raw down to the object payload: markdown fences and any prose
// before the first brace or after the last balanced brace are dropped.
func extract(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if i := strings.IndexByte(s, '{'); i > 0 {
		s = s[i:]
	}
	// Trailing prose after a complete object is only safe to cut when the cut
	// point itself parses; otherwise the text was truncated and belongs to the
	// repair path untouched.
	if j := strings.LastIndexByte(s, '}'); j >= 0 && j < len(s)-1 {
		if json.Valid([]byte(s[:j+1])) {
			s = s[:j+1]
		}
	}
	return s
}

type scanState struct {
	stack       []byte
	inString    bool
	stringStart int // opening quote of the unterminated string, -1 otherwise

	lastClosedStart int // opening quote of the most recently completed string
	lastClosedEnd   int // closing quote index of that string
}

// scan walks s once, tracking string literals (with escapes) and the stack of
// open containers. Brackets inside strings do not count.
func scan(s string) scanState {
	st := scanState{stringStart: -1, lastClosedStart: -1, lastClosedEnd: -1}
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				st.inString = false
				st.lastClosedStart = st.stringStart
				st.lastClosedEnd = i
				st.stringStart = -1
			}
			continue
		}
		switch c {
		case '"':
			st.inString = true
			st.stringStart = i
		case '{', '[':
			st.stack = append(st.stack, c)
		case '}':
			if n := len(st.stack); n > 0 && st.stack[n-1] == '{' {
				st.stack = st.stack[:n-1]
			}
		case ']':
			if n := len(st.stack); n > 0 && st.stack[n-1] == '[' {
				st.stack = st.stack[:n-1]
			}
		}
	}
	return st
}

// trimDangling strips the trailing fragment a truncation leaves behind:
// an unterminated string, a half-written number or literal, a comma or colon
// with nothing after it, or an object key that never got its colon.
func trimDangling(s string) string {
	for {
		st := scan(s)
		if st.inString {
			s = s[:st.stringStart]
			continue
		}
		if t := strings.TrimRight(s, " \t\r\n"); t != s {
			s = t
			continue
		}
		if s == "" {
			return s
		}
		last := s[len(s)-1]
		if last == ',' || last == ':' {
			s = s[:len(s)-1]
			continue
		}
		if last == '.' || last == '-' || last == '+' || last == 'e' || last == 'E' {
			s = s[:len(s)-1]
			continue
		}
		if isAlpha(last) {
			j := len(s)
			for j > 0 && isAlpha(s[j-1]) {
				j--
			}
			if w := s[j:]; w != "true" && w != "false" && w != "null" {
				s = s[:j]
				continue
			}
			return s
		}
		// A complete string directly inside an object, preceded by '{' or ',',
		// is a key whose colon never arrived.
		if last == '"' && len(st.stack) > 0 && st.stack[len(st.stack)-1] == '{' &&
			st.lastClosedEnd == len(s)-1 {
			before := strings.TrimRight(s[:st.lastClosedStart], " \t\r\n")
			if before != "" && (before[len(before)-1] == '{' || before[len(before)-1] == ',') {
				s = before
				continue
			}
		}
		return s
	}
}

// balance appends the closing bracket/brace for every container still open,
// innermost first.
func balance(s string) string {
	st := scan(s)
	var b strings.Builder
	b.WriteString(s)
	for i := len(st.stack) - 1; i >= 0; i-- {
		if st.stack[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String()
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

package candidate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
)

// MaxCandidates caps how many generated titles are kept.
const MaxCandidates = 30

// Outcome classifies a parse of generator output.
type Outcome int

const (
	// OutcomeNone means no parse happened (cache hit or vector batch).
	OutcomeNone Outcome = iota
	// OutcomeOk means the output was valid JSON as returned.
	OutcomeOk
	// OutcomeRepaired means the output decoded only after repair.
	OutcomeRepaired
	// OutcomeFailed means no valid candidates could be recovered.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeRepaired:
		return "repaired"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}

// ParseResult is the tagged result of ParseCandidates. Candidates is set
// for OutcomeOk and OutcomeRepaired; Reason is set for OutcomeFailed.
type ParseResult struct {
	Outcome    Outcome
	Candidates []catalog.Candidate
	// Dropped counts decoded entries that failed validation.
	Dropped int
	Reason  string
}

// Film is one generated title as the model emits it.
type Film struct {
	Title      string   `json:"title" validate:"required,nonempty"`
	Year       *int     `json:"year,omitempty" validate:"omitempty,min=1870,max=2100"`
	Confidence *float64 `json:"confidence_score,omitempty" validate:"omitempty,min=0,max=100"`
}

type envelope struct {
	Titles []json.RawMessage `json:"titles"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ParseCandidates decodes generator output into candidates. Strict JSON is
// tried first, then a repaired version of the text.
func ParseCandidates(raw string) ParseResult {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ParseResult{Outcome: OutcomeFailed, Reason: "empty output"}
	}

	if items, ok := decodeTitles([]byte(raw)); ok {
		return build(items, OutcomeOk)
	}

	for _, body := range extractJSON(raw) {
		if items, ok := decodeTitles([]byte(repairJSON(body))); ok {
			return build(items, OutcomeRepaired)
		}
	}
	return ParseResult{Outcome: OutcomeFailed, Reason: "output is not JSON after repair"}
}

// decodeTitles accepts {"titles": [...]} or a bare array.
func decodeTitles(data []byte) ([]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, false
		}
		return items, true
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Titles == nil {
		return nil, false
	}
	return env.Titles, true
}

func build(items []json.RawMessage, outcome Outcome) ParseResult {
	res := ParseResult{Outcome: outcome}
	for _, item := range items {
		f, ok := decodeFilm(item)
		if !ok {
			res.Dropped++
			continue
		}
		res.Candidates = append(res.Candidates, f.candidate())
	}

	if len(res.Candidates) == 0 {
		return ParseResult{Outcome: OutcomeFailed, Dropped: res.Dropped, Reason: "no valid titles"}
	}
	if len(res.Candidates) > MaxCandidates {
		res.Candidates = res.Candidates[:MaxCandidates]
	}
	return res
}

// decodeFilm tolerates numbers sent as strings and treats year 0 as unknown.
func decodeFilm(item json.RawMessage) (Film, bool) {
	var loose struct {
		Title      string          `json:"title"`
		Year       json.RawMessage `json:"year"`
		Confidence json.RawMessage `json:"confidence_score"`
	}
	if err := json.Unmarshal(item, &loose); err != nil {
		return Film{}, false
	}

	f := Film{Title: strings.TrimSpace(loose.Title)}
	if n, ok := looseNumber(loose.Year); ok {
		if y := int(n); y != 0 {
			f.Year = &y
		}
	} else if len(loose.Year) > 0 && string(loose.Year) != "null" {
		return Film{}, false
	}
	if n, ok := looseNumber(loose.Confidence); ok {
		f.Confidence = &n
	} else if len(loose.Confidence) > 0 && string(loose.Confidence) != "null" {
		return Film{}, false
	}

	if err := validate.Struct(f); err != nil {
		return Film{}, false
	}
	return f, true
}

func looseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	return n, err == nil
}

func (f Film) candidate() catalog.Candidate {
	return catalog.Candidate{
		RawTitle:   f.Title,
		YearHint:   f.Year,
		Confidence: f.Confidence,
		Source:     catalog.SourceGenerator,
	}
}

var codeFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// extractJSON strips code fences and leading prose. It returns the text
// cut at the last closing bracket, then the uncut text so a truncated
// tail can still be closed by repair.
func extractJSON(s string) []string {
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return []string{s}
	}
	s = s[start:]
	end := strings.LastIndexAny(s, "}]")
	if end < 0 || end == len(s)-1 {
		return []string{s}
	}
	return []string{s[:end+1], s}
}

// repairJSON fixes the mistakes models make most: single-quoted strings,
// unquoted keys, trailing commas, Python literals and unclosed brackets.
func repairJSON(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 16)

	var stack []byte
	inString := false
	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case c == '\\' && i+1 < len(s):
				i++
				if s[i] != '\'' {
					out.WriteByte(c)
				}
				out.WriteByte(s[i])
			case c == quote:
				out.WriteByte('"')
				inString = false
			case c == '"':
				// A double quote inside a single-quoted string.
				out.WriteString(`\"`)
			case c == '\n':
				out.WriteString(`\n`)
			default:
				out.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"' || c == '\'':
			inString = true
			quote = c
			out.WriteByte('"')
		case c == '{' || c == '[':
			stack = append(stack, c)
			out.WriteByte(c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			out.WriteByte(c)
		case c == ',':
			if next := nextSignificant(s, i+1); next == '}' || next == ']' || next == 0 {
				continue
			}
			out.WriteByte(c)
		case isIdentStart(c) && i > 0 && isNumberPart(s[i-1]):
			// Exponent of a number such as 1e3.
			out.WriteByte(c)
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			switch {
			case nextSignificant(s, j) == ':':
				out.WriteString(strconv.Quote(word))
			case word == "True" || word == "true":
				out.WriteString("true")
			case word == "False" || word == "false":
				out.WriteString("false")
			case word == "None" || word == "null":
				out.WriteString("null")
			default:
				out.WriteString(strconv.Quote(word))
			}
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}

	if inString {
		out.WriteByte('"')
	}
	repaired := strings.TrimRight(out.String(), " \t\r\n")
	repaired = strings.TrimSuffix(repaired, ",")
	if strings.HasSuffix(repaired, ":") {
		repaired += "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			repaired += "}"
		} else {
			repaired += "]"
		}
	}
	return repaired
}

func nextSignificant(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumberPart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// String renders a result for logs.
func (r ParseResult) String() string {
	if r.Outcome == OutcomeFailed {
		return fmt.Sprintf("failed: %s", r.Reason)
	}
	return fmt.Sprintf("%s: %d titles, %d dropped", r.Outcome, len(r.Candidates), r.Dropped)
}

package decision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Output is the shape a model answer arrived in.
type Output interface{ isOutput() }

// JSONOutput is an answer that decoded as a JSON object with a decision field.
type JSONOutput struct{ Fields map[string]any }

// TextOutput is any other answer.
type TextOutput struct{ Text string }

func (JSONOutput) isOutput() {}
func (TextOutput) isOutput() {}

// Default confidence when a decision was found in text without an explicit score.
const inferredConfidence = 0.7

var (
	decisionRx   = regexp.MustCompile(`(?i)DECISION:\s*([A-Z_]+)`)
	confidenceRx = regexp.MustCompile(`(?i)CONFIDENCE:\s*([\d.]+)\s*(%)?`)
	reasonsRx    = regexp.MustCompile(`(?i)REASONS?:`)
	nextLabelRx  = regexp.MustCompile(`\n[A-Z][A-Z_]*:`)
	bulletRx     = regexp.MustCompile(`(?:^|\n)\s*[-•*\d.]+\s+`)
	trailingRx   = regexp.MustCompile(`["}]+$`)
	sentenceRx   = regexp.MustCompile(`[.!?]+`)
	fenceRx      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Classify decides whether raw is a JSON answer or free text.
func Classify(raw string) Output {
	s := strings.TrimSpace(raw)
	if m := fenceRx.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if !strings.HasPrefix(s, "{") {
		return TextOutput{Text: raw}
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return TextOutput{Text: raw}
	}
	if _, ok := fields["decision"]; !ok {
		return TextOutput{Text: raw}
	}
	return JSONOutput{Fields: fields}
}

// Parse resolves raw model output into a Record. It never fails; unreadable input yields Unknown
// with zero confidence.
func Parse(raw string) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			rec = newRecord(raw, Unknown, 0, nil)
		}
	}()
	switch out := Classify(raw).(type) {
	case JSONOutput:
		return fromJSON(raw, out.Fields)
	case TextOutput:
		return fromText(out.Text)
	}
	return newRecord(raw, Unknown, 0, nil)
}

func fromJSON(raw string, f map[string]any) Record {
	d := Normalize(stringOf(f["decision"]))

	var confidence float64
	if v, ok := f["confidence_0to1"]; ok && v != nil {
		confidence, _ = floatOf(v)
	} else if v, ok := f["confidence"]; ok && v != nil {
		confidence, _ = floatOf(v)
	}

	var reasons []string
	if items, ok := f["reasons"].([]any); ok {
		for _, it := range items {
			if s, ok := it.(string); ok && runeLen(strings.TrimSpace(s)) > 5 {
				reasons = append(reasons, strings.TrimSpace(s))
			}
		}
	}
	if len(reasons) == 0 {
		if damage, ok := f["detected_damage"].([]any); ok {
			for _, it := range damage {
				obj, ok := it.(map[string]any)
				if !ok {
					continue
				}
				if n, ok := obj["notes"].(string); ok && runeLen(strings.TrimSpace(n)) > 10 {
					reasons = append(reasons, strings.TrimSpace(n))
				}
			}
		}
	}
	return newRecord(raw, d, confidence, reasons)
}

func fromText(raw string) Record {
	text := strings.ReplaceAll(raw, "\r\n", "\n")

	d := Unknown
	if m := decisionRx.FindStringSubmatch(text); m != nil {
		d = Normalize(m[1])
	}
	if d == Unknown {
		d = infer(strings.ToLower(text))
	}

	confidence, found := 0.0, false
	if m := confidenceRx.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64); err == nil {
			confidence, found = scale(f, m[2] != ""), true
		}
	}
	if !found && d != Unknown {
		confidence = inferredConfidence
	}

	reasons, ok := reasonSection(text)
	if !ok {
		reasons = sentences(text)
	}
	return newRecord(raw, d, confidence, reasons)
}

// infer applies keyword heuristics when no explicit DECISION label is present.
// Order matters: the first matching rule wins.
func infer(lower string) Decision {
	has := func(s string) bool { return strings.Contains(lower, s) }
	switch {
	case has("repairable") && has("spot"):
		return RepairableSpot
	case has("repairable") && (has("resurface") || has("full")):
		return RepairableFullResurface
	case has("not repairable") || has("ncd"):
		return NotRepairable
	case has("needs") && (has("assessment") || has("more info")):
		return NeedsAssessment
	case has("repairable") || has("feasible"):
		return RepairableSpot
	}
	return Unknown
}

// reasonSection extracts bullet reasons after a REASONS: label, ending at a blank line or the
// next all-caps label. ok is false when the label is absent.
func reasonSection(text string) ([]string, bool) {
	loc := reasonsRx.FindStringIndex(text)
	if loc == nil {
		return nil, false
	}
	rest := strings.TrimLeft(text[loc[1]:], " \t\n\v\f")
	if rest == "" {
		return nil, true
	}
	end := len(rest)
	if i := strings.Index(rest[1:], "\n\n"); i >= 0 && i+1 < end {
		end = i + 1
	}
	if m := nextLabelRx.FindStringIndex(rest[1:]); m != nil && m[0]+1 < end {
		end = m[0] + 1
	}

	section := strings.TrimSpace(rest[:end])
	section = strings.TrimSpace(trailingRx.ReplaceAllString(section, ""))
	section = strings.ReplaceAll(section, `\n`, "\n")

	var out []string
	for _, chunk := range bulletRx.Split(section, -1) {
		for _, line := range strings.Split(chunk, "\n") {
			r := strings.TrimSpace(line)
			if runeLen(r) > 10 && !strings.Contains(strings.ToLower(r), "example") {
				out = append(out, r)
			}
		}
	}
	return out, true
}

// sentences is the fallback when no REASONS section exists.
func sentences(text string) []string {
	var out []string
	for _, s := range sentenceRx.Split(text, -1) {
		s = strings.TrimSpace(s)
		n := runeLen(s)
		if n <= 30 || n >= 250 {
			continue
		}
		lower := strings.ToLower(s)
		if strings.Contains(lower, "decision:") || strings.Contains(lower, "confidence:") {
			continue
		}
		out = append(out, s)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// scale converts a percentage to a fraction. Without a % sign only scores in [2, 100] are
// read as percentages; anything between 1 and 2 is an overconfident fraction and clamps to 1.
func scale(f float64, percent bool) float64 {
	if percent || (f >= 2 && f <= 100) {
		return f / 100
	}
	return f
}

func floatOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return scale(t, false), true
	case string:
		s := strings.TrimSpace(t)
		num := strings.TrimSpace(strings.TrimSuffix(s, "%"))
		f, err := strconv.ParseFloat(num, 64)
		return scale(f, num != s), err == nil
	case json.Number:
		f, err := t.Float64()
		return scale(f, false), err == nil
	}
	return 0, false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

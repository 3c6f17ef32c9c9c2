// Package decision turns raw model output into a canonical triage decision.
package decision

import "strings"

// Decision is the canonical triage outcome.
type Decision string

const (
	RepairableSpot          Decision = "REPAIRABLE_SPOT"
	RepairableFullResurface Decision = "REPAIRABLE_FULL_RESURFACE"
	NotRepairable           Decision = "NOT_REPAIRABLE"
	NeedsAssessment         Decision = "NEEDS_ASSESSMENT"
	Unknown                 Decision = "UNKNOWN"
)

// aliases maps obsolete spellings emitted by older prompts and assistants.
var aliases = map[string]Decision{
	"NCD":                 NotRepairable,
	"NEEDS_MORE_INFO":     NeedsAssessment,
	"REPAIRABLE_COSMETIC": RepairableSpot,
}

var canonical = map[Decision]bool{
	RepairableSpot:          true,
	RepairableFullResurface: true,
	NotRepairable:           true,
	NeedsAssessment:         true,
	Unknown:                 true,
}

// Normalize upper-cases s and resolves legacy aliases. Anything outside the canonical set is Unknown.
func Normalize(s string) Decision {
	up := strings.ToUpper(strings.TrimSpace(s))
	if d, ok := aliases[up]; ok {
		return d
	}
	if d := Decision(up); canonical[d] {
		return d
	}
	return Unknown
}

var labels = map[Decision]string{
	RepairableSpot:          "Likely Repairable - Spot Repair",
	RepairableFullResurface: "Likely Repairable - Full Resurface",
	NotRepairable:           "Needs Technical Review",
	NeedsAssessment:         "Needs Technical Review",
}

// Label is the customer-facing wording for d.
func (d Decision) Label() string {
	if l, ok := labels[d]; ok {
		return l
	}
	return "Assessment Unavailable"
}

// JobDuration is the booking slot a repairable decision needs, or "" when no quote applies.
func (d Decision) JobDuration() string {
	switch d {
	case RepairableSpot:
		return "HALF_DAY"
	case RepairableFullResurface:
		return "FULL_DAY"
	}
	return ""
}

// Record is the parsed, canonical output consumed by the widget.
type Record struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence_0to1"`
	Reasons    []string `json:"reasons"`
	RawText    string   `json:"raw_text"`
}

// newRecord attaches the untouched raw text and normalizes the parsed fields.
func newRecord(raw string, d Decision, confidence float64, reasons []string) Record {
	if d == "" {
		d = Unknown
	}
	return Record{
		Decision:   d,
		Confidence: clamp(confidence),
		Reasons:    dedupe(reasons),
		RawText:    raw,
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func clamp(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

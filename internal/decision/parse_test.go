package decision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	raw := `{"decision":"repairable_full_resurface","confidence_0to1":0.62,"reasons":["Deep scratches across the worktop","short","Laminate edge is lifting"]}`
	rec := Parse(raw)
	assert.Equal(t, RepairableFullResurface, rec.Decision)
	assert.InDelta(t, 0.62, rec.Confidence, 1e-9)
	assert.Equal(t, []string{"Deep scratches across the worktop", "Laminate edge is lifting"}, rec.Reasons)
	assert.Equal(t, raw, rec.RawText)
}

func TestParseJSONLegacyAliases(t *testing.T) {
	cases := map[string]Decision{
		`{"decision":"NCD","confidence":0.4,"reasons":[]}`:             NotRepairable,
		`{"decision":"NEEDS_MORE_INFO","confidence":"0.3","reasons":[]}`: NeedsAssessment,
		`{"decision":"REPAIRABLE_COSMETIC"}`:                            RepairableSpot,
		`{"decision":"SOMETHING_ELSE"}`:                                 Unknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Parse(raw).Decision, raw)
	}
	assert.InDelta(t, 0.3, Parse(`{"decision":"NEEDS_MORE_INFO","confidence":"0.3"}`).Confidence, 1e-9)
}

func TestParseJSONDetectedDamageFallback(t *testing.T) {
	raw := "```json\n" + `{"decision":"REPAIRABLE_SPOT","confidence_0to1":0.8,"reasons":[],
	 "detected_damage":[{"notes":"Small chip near the plughole"},{"notes":"tiny"},{"type":"scratch"}]}` + "\n```"
	rec := Parse(raw)
	assert.Equal(t, RepairableSpot, rec.Decision)
	assert.Equal(t, []string{"Small chip near the plughole"}, rec.Reasons)
}

func TestParseJSONWithoutDecisionFallsThroughToText(t *testing.T) {
	rec := Parse(`{"summary":"DECISION: NOT_REPAIRABLE"}`)
	assert.Equal(t, NotRepairable, rec.Decision)
}

func TestParseTextFormat(t *testing.T) {
	raw := "DECISION: REPAIRABLE_SPOT\nCONFIDENCE: 0.85\nREASONS:\n- Two small chips visible\n- Surface-level damage only\n- Acrylic is ideal for spot repair"
	rec := Parse(raw)
	assert.Equal(t, RepairableSpot, rec.Decision)
	assert.InDelta(t, 0.85, rec.Confidence, 1e-9)
	require.Len(t, rec.Reasons, 3)
	assert.Equal(t, "Two small chips visible", rec.Reasons[0])
	assert.Equal(t, "Acrylic is ideal for spot repair", rec.Reasons[2])
}

func TestParseTextSectionBoundaries(t *testing.T) {
	raw := strings.Join([]string{
		"DECISION: NCD",
		"",
		"CONFIDENCE: 90",
		"",
		"REASONS:",
		"1. The crack runs through the full depth of the stone",
		"2. Structural damage cannot be cosmetically repaired",
		"* For example a replacement panel may be needed",
		"- ok",
		"NEXT_STEPS: book a survey with a technician",
	}, "\r\n")
	rec := Parse(raw)
	assert.Equal(t, NotRepairable, rec.Decision)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
	assert.Equal(t, []string{
		"The crack runs through the full depth of the stone",
		"Structural damage cannot be cosmetically repaired",
	}, rec.Reasons)
}

func TestParseTextStopsAtBlankLine(t *testing.T) {
	raw := "DECISION: NEEDS_MORE_INFO\nREASONS: - Material type is not visible in the photos\"}\n\nCould you send a close-up of the edge?"
	rec := Parse(raw)
	assert.Equal(t, NeedsAssessment, rec.Decision)
	assert.Equal(t, inferredConfidence, rec.Confidence)
	assert.Equal(t, []string{"Material type is not visible in the photos"}, rec.Reasons)
}

func TestParseHeuristics(t *testing.T) {
	cases := []struct {
		text string
		want Decision
	}{
		{"this damage looks repairable but will need a full resurface due to extensive scratching", RepairableFullResurface},
		{"Repairable with a spot repair on the corner.", RepairableSpot},
		{"Unfortunately this is not repairable.", NotRepairable},
		{"This needs an on-site assessment.", NeedsAssessment},
		{"A repair looks feasible.", RepairableSpot},
		{"Lovely photo of a kitchen.", Unknown},
		{"The bath is not repairable in place, but the chip is a single spot.", RepairableSpot},
		{"It needs a full resurface, though it is repairable.", RepairableFullResurface},
		{"Not repairable, needs an assessment on site.", NotRepairable},
		{"Needs more info before we can say it is feasible.", NeedsAssessment},
	}
	for _, tc := range cases {
		rec := Parse(tc.text)
		assert.Equal(t, tc.want, rec.Decision, tc.text)
		if tc.want == Unknown {
			assert.Zero(t, rec.Confidence)
		} else {
			assert.Equal(t, inferredConfidence, rec.Confidence)
		}
	}
}

func TestParseSentenceFallback(t *testing.T) {
	raw := "DECISION: REPAIRABLE_SPOT. The chip is small and sits away from any joints or edges! " +
		"Short one. Acrylic baths respond well to colour-matched filler repairs? " +
		"The surrounding enamel shows no crazing or lifting at all. " +
		"A second chip near the taps is also within the spot repair range. " +
		"Overall the surface is in good condition apart from these marks. " +
		"The technician should bring a gloss polish kit for blending purposes."
	rec := Parse(raw)
	assert.Equal(t, RepairableSpot, rec.Decision)
	require.Len(t, rec.Reasons, 5)
	assert.Equal(t, "The chip is small and sits away from any joints or edges", rec.Reasons[0])
	for _, r := range rec.Reasons {
		assert.NotContains(t, strings.ToLower(r), "decision:")
	}
}

func TestParseNeverFails(t *testing.T) {
	for _, raw := range []string{"", "   ", "%%%###", "{", `{"decision":`, "DECISION:", "REASONS:", "CONFIDENCE: ."} {
		rec := Parse(raw)
		assert.Equal(t, Unknown, rec.Decision, raw)
		assert.Zero(t, rec.Confidence, raw)
		assert.NotNil(t, rec.Reasons)
		assert.Empty(t, rec.Reasons, raw)
		assert.Equal(t, raw, rec.RawText)
	}
}

func TestParseDedupesAndClamps(t *testing.T) {
	rec := Parse(`{"decision":"REPAIRABLE_SPOT","confidence":1.7e3,"reasons":["Chip on the rim of bath","Chip on the rim of bath"]}`)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, []string{"Chip on the rim of bath"}, rec.Reasons)

	cases := []struct {
		raw  string
		want float64
	}{
		{`{"decision":"REPAIRABLE_SPOT","confidence_0to1":1.2}`, 1},
		{`{"decision":"REPAIRABLE_SPOT","confidence_0to1":1.5}`, 1},
		{`{"decision":"REPAIRABLE_SPOT","confidence":-0.4}`, 0},
		{`{"decision":"REPAIRABLE_SPOT","confidence":85}`, 0.85},
		{"DECISION: REPAIRABLE_SPOT\nCONFIDENCE: 1.2\nREASONS:\n- Small chip on the rim", 1},
		{"DECISION: REPAIRABLE_SPOT\nCONFIDENCE: 1.5\nREASONS:\n- Small chip on the rim", 1},
		{"DECISION: REPAIRABLE_SPOT\nCONFIDENCE: 1.5%\nREASONS:\n- Small chip on the rim", 0.015},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, Parse(tc.raw).Confidence, 1e-9, tc.raw)
	}
}

func TestParsePercentConfidence(t *testing.T) {
	fromJSON := Parse(`{"decision":"NCD","confidence":"85%"}`)
	fromText := Parse("DECISION: NCD\nCONFIDENCE: 85%")
	assert.Equal(t, NotRepairable, fromJSON.Decision)
	assert.InDelta(t, 0.85, fromJSON.Confidence, 1e-9)
	assert.InDelta(t, 0.85, fromText.Confidence, 1e-9)
	assert.InDelta(t, 0.85, Parse(`{"decision":"NCD","confidence":" 85 % "}`).Confidence, 1e-9)
}

func TestClassify(t *testing.T) {
	assert.IsType(t, JSONOutput{}, Classify(`  {"decision":"NCD"} `))
	assert.IsType(t, TextOutput{}, Classify(`{"foo":1}`))
	assert.IsType(t, TextOutput{}, Classify(`[1,2]`))
	assert.IsType(t, TextOutput{}, Classify(`DECISION: NCD`))
}

func TestDecisionPresentation(t *testing.T) {
	assert.Equal(t, "HALF_DAY", RepairableSpot.JobDuration())
	assert.Equal(t, "FULL_DAY", RepairableFullResurface.JobDuration())
	assert.Equal(t, "", NotRepairable.JobDuration())
	assert.Equal(t, "Needs Technical Review", NeedsAssessment.Label())
	assert.Equal(t, "Assessment Unavailable", Unknown.Label())
}

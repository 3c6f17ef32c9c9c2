// Package prompt renders the validation and triage instructions sent to the model.
package prompt

import (
	"regexp"
	"strings"
)

// Default tokens substituted for missing values.
const (
	DefaultUnknown     = "Unknown"
	DefaultDescription = "No description provided"
	DefaultNotes       = "None"
)

var placeholderRx = regexp.MustCompile(`\{([a-zA-Z]+)\}`)

// Template is a text with named {placeholders}, each with a default.
type Template struct {
	Text     string
	Defaults map[string]string
}

// Render substitutes vars into the template. Blank or missing values take the placeholder's
// default, and placeholders with no default become DefaultUnknown.
func (t Template) Render(vars map[string]string) string {
	return placeholderRx.ReplaceAllStringFunc(t.Text, func(m string) string {
		key := m[1 : len(m)-1]
		if v := clean(vars[key]); v != "" {
			return v
		}
		if d, ok := t.Defaults[key]; ok {
			return d
		}
		return DefaultUnknown
	})
}

// clean trims v and drops values that are really absent-value sentinels from form serializers.
func clean(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "undefined", "null", "<nil>", "nil":
		return ""
	}
	return v
}

// ValidationTemplate asks only for item, material and damage extraction as JSON.
var ValidationTemplate = Template{
	Text: `You are a surface repair expert for Magicman. Analyze these images in detail to provide:

1. ITEM DESCRIPTION: A detailed description of the main item visible in the images (e.g., "White ceramic bathtub", "Oak wood kitchen worktop", "Laminate bathroom vanity unit")

2. DAMAGE DESCRIPTION: A comprehensive description of all visible damage to this item, including location, size, and severity

3. MATERIAL: The surface material type (e.g., wood, laminate, granite, marble, ceramic, acrylic, fiberglass, enamel)

4. DAMAGE TYPE: The primary type of damage (e.g., scratch, dent, crack, chip, burn, stain, wear)

User's description: "{description}"

Respond ONLY in this exact JSON format:
{
  "itemDescription": "detailed description of the main item in the images",
  "damageDescription": "detailed description of the damage visible on the item, including location and severity",
  "material": "detected material type",
  "damageType": "detected damage type",
  "summary": "brief one-sentence overview combining item and damage"
}

Be specific and detailed in your descriptions to help the customer understand what you're analyzing.`,
	Defaults: map[string]string{"description": DefaultDescription},
}

// TriageTemplate asks for a full decision in the DECISION/CONFIDENCE/REASONS layout the
// decision parser reads.
var TriageTemplate = Template{
	Text: `You are a surface repair triage assistant for Magicman, a specialist repair company.

Please analyze the following damage case:

Customer Information:
- Name: {name}
- Email: {email}
- Postcode: {postcode}

Damage Information:
- Description: {description}
- Validated Material: {material}
- Validated Damage Type: {damageType}
- Additional Notes: {notes}

Task:
Review the attached images and the description to determine the repair classification. Consider:
1. Size and severity of damage
2. Material type (worktop, furniture, flooring, etc.)
3. Whether it's surface-level or structural
4. Feasibility of spot repair vs full resurface

Provide your response in the following format, with each label on its own line:

DECISION: [One of: REPAIRABLE_SPOT, REPAIRABLE_FULL_RESURFACE, NOT_REPAIRABLE, NEEDS_ASSESSMENT]
CONFIDENCE: [0.0 to 1.0]
REASONS:
- [Reason 1]
- [Reason 2]
- [Reason 3]

If critical details are missing (material type, finish, exact location), set DECISION to NEEDS_ASSESSMENT and ask up to 2 specific clarifying questions after the reasons.`,
	Defaults: map[string]string{
		"name":        DefaultUnknown,
		"email":       DefaultUnknown,
		"postcode":    DefaultUnknown,
		"description": DefaultDescription,
		"material":    DefaultUnknown,
		"damageType":  DefaultUnknown,
		"notes":       DefaultNotes,
	},
}

// Validation renders the validation prompt for a customer description.
func Validation(description string) string {
	return ValidationTemplate.Render(map[string]string{"description": description})
}

// TriageInput carries the case fields rendered into the triage prompt.
type TriageInput struct {
	Name        string
	Email       string
	Postcode    string
	Description string
	Material    string
	DamageType  string
	Notes       string
}

// Triage renders the triage prompt.
func Triage(in TriageInput) string {
	return TriageTemplate.Render(map[string]string{
		"name":        in.Name,
		"email":       in.Email,
		"postcode":    in.Postcode,
		"description": in.Description,
		"material":    in.Material,
		"damageType":  in.DamageType,
		"notes":       in.Notes,
	})
}

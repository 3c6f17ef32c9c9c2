// Package models defines the data models used in the application.
package models

// Contact holds the submitter's details as typed into the form.
type Contact struct {
	Name     string
	Email    string
	Postcode string
}

// ConfirmedMetadata is the user-corrected output of a validation pass.
type ConfirmedMetadata struct {
	Material   string
	DamageType string
	Notes      string
}

// ImageAttachment is one uploaded photo, fully buffered.
type ImageAttachment struct {
	Filename string
	MimeType string
	Bytes    []byte
}

// Empty reports whether the attachment carries no bytes.
func (a ImageAttachment) Empty() bool { return len(a.Bytes) == 0 }

// SubmittedCase is one customer's triage request. It lives for a single request.
type SubmittedCase struct {
	ID          string
	Contact     Contact
	Description string
	Attachments []ImageAttachment

	// Set in multi-step flows after the validation pass.
	Confirmed *ConfirmedMetadata
}

// ValidationResult is the material/damage extraction returned by /validate.
type ValidationResult struct {
	ItemDescription   string `json:"itemDescription"`
	DamageDescription string `json:"damageDescription"`
	Material          string `json:"material"`
	DamageType        string `json:"damageType"`
	Summary           string `json:"summary"`
	Notes             string `json:"notes"`
}

// WithDefaults fills blank fields with the tokens the widget expects.
func (v ValidationResult) WithDefaults() ValidationResult {
	if v.ItemDescription == "" {
		v.ItemDescription = "Unknown"
	}
	if v.DamageDescription == "" {
		v.DamageDescription = "Unknown"
	}
	if v.Material == "" {
		v.Material = "Unknown"
	}
	if v.DamageType == "" {
		v.DamageType = "Unknown"
	}
	if v.Summary == "" {
		v.Summary = "Unable to determine from images"
	}
	return v
}

// AssessmentItem is the audit row written for each completed triage.
type AssessmentItem struct {
	// DynamoDB keys
	PK string `dynamodbav:"PK"` // CASE#<caseID>
	SK string `dynamodbav:"SK"` // ASSESSMENT#<ts>

	CaseID     string   `dynamodbav:"case_id"`
	Mode       string   `dynamodbav:"mode"`
	Decision   string   `dynamodbav:"decision"`
	Confidence float64  `dynamodbav:"confidence"`
	Reasons    []string `dynamodbav:"reasons"`
	RawText    string   `dynamodbav:"raw_text"`
	Images     int      `dynamodbav:"images"`
	Material   string   `dynamodbav:"material,omitempty"`
	DamageType string   `dynamodbav:"damage_type,omitempty"`
	CreatedAt  string   `dynamodbav:"created_at"` // ISO8601
}

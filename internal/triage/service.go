// Package triage runs a submitted case through the assessment pipeline: ingest, image
// normalization, prompt rendering, model invocation and response parsing.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/magicman/marv/internal/aoai"
	"github.com/magicman/marv/internal/apierr"
	"github.com/magicman/marv/internal/config"
	"github.com/magicman/marv/internal/decision"
	"github.com/magicman/marv/internal/imaging"
	"github.com/magicman/marv/internal/ingest"
	"github.com/magicman/marv/internal/logger"
	"github.com/magicman/marv/internal/models"
	"github.com/magicman/marv/internal/prompt"
	"github.com/magicman/marv/internal/validate"
)

const (
	validationMaxTokens   = 500
	validationTemperature = 0.3
)

// AuditWriter persists a completed assessment. ddb.Repo implements it.
type AuditWriter interface {
	PutAssessment(ctx context.Context, a models.AssessmentItem) error
}

// Service holds the collaborators of one pipeline. Triage and Validator may be the same invoker.
type Service struct {
	Env       config.Env
	Triage    aoai.Invoker
	Validator aoai.Invoker
	Images    *imaging.Normalizer
	Audit     AuditWriter
	Log       *logger.Logger

	NewID func() string
	Now   func() time.Time
}

// Outcome is the result of one triage request.
type Outcome struct {
	CaseID     string
	Record     decision.Record
	Invocation aoai.Invocation
}

func (s *Service) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return ulid.Make().String()
}

// Limits returns the ingest limits derived from configuration.
func (s *Service) Limits() ingest.Limits {
	return ingest.Limits{MaxFileBytes: s.Env.MaxFileBytes}
}

// CaseFromForm maps form fields onto a case. description falls back to the text field.
func CaseFromForm(id string, form *ingest.Form) models.SubmittedCase {
	c := models.SubmittedCase{
		ID: id,
		Contact: models.Contact{
			Name:     form.Field("name"),
			Email:    form.Field("email"),
			Postcode: form.Field("postcode"),
		},
		Description: form.Field("description", "text"),
	}
	for _, f := range form.Files {
		if !f.Empty() {
			c.Attachments = append(c.Attachments, f)
		}
	}
	material, damageType, notes := form.Field("material"), form.Field("damageType", "damage_type"), form.Field("notes")
	if material != "" || damageType != "" || notes != "" {
		c.Confirmed = &models.ConfirmedMetadata{Material: material, DamageType: damageType, Notes: notes}
	}
	return c
}

// Validate extracts material and damage metadata from the photos for the user to confirm.
func (s *Service) Validate(ctx context.Context, form *ingest.Form) (models.ValidationResult, error) {
	if err := s.Env.ProviderCheck(false); err != nil {
		return models.ValidationResult{}, err
	}
	c := CaseFromForm(s.newID(), form)
	log := s.log().With("case_id", c.ID, "step", "validate")

	if err := s.checkImages(c); err != nil {
		return models.ValidationResult{}, err
	}
	refs, err := s.normalize(ctx, c)
	if err != nil {
		return models.ValidationResult{}, err
	}

	temp := validationTemperature
	start := s.now()
	res, err := s.Validator.Invoke(ctx, aoai.Request{
		Prompt:      prompt.Validation(c.Description),
		Images:      refs,
		MaxTokens:   validationMaxTokens,
		Temperature: &temp,
		JSONMode:    true,
	})
	if err != nil {
		log.Error("validation call failed", "error", err.Error(), "elapsed", s.now().Sub(start).String())
		return models.ValidationResult{}, providerError(err)
	}

	var v models.ValidationResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Text)), &v); err != nil {
		log.Warn("validation reply is not json, using defaults", "error", err.Error())
		v = models.ValidationResult{}
	}
	v = v.WithDefaults()
	log.Info("validation complete", "images", len(refs), "material", v.Material, "damage_type", v.DamageType,
		"elapsed", s.now().Sub(start).String())
	return v, nil
}

// Assess runs the full triage pipeline and returns the parsed decision.
func (s *Service) Assess(ctx context.Context, form *ingest.Form) (Outcome, error) {
	if err := s.Env.ProviderCheck(s.Env.UsesAssistant()); err != nil {
		return Outcome{}, err
	}
	c := CaseFromForm(s.newID(), form)
	log := s.log().With("case_id", c.ID, "step", "triage")

	if err := validate.EmailShape(c.Contact.Email); err != nil {
		log.Warn("submitted email failed shape check", "error", err.Error())
	}
	if err := s.checkImages(c); err != nil {
		return Outcome{CaseID: c.ID}, err
	}
	refs, err := s.normalize(ctx, c)
	if err != nil {
		return Outcome{CaseID: c.ID}, err
	}

	in := prompt.TriageInput{
		Name:        c.Contact.Name,
		Email:       c.Contact.Email,
		Postcode:    c.Contact.Postcode,
		Description: c.Description,
	}
	if c.Confirmed != nil {
		in.Material, in.DamageType, in.Notes = c.Confirmed.Material, c.Confirmed.DamageType, c.Confirmed.Notes
	}

	start := s.now()
	res, err := s.Triage.Invoke(ctx, aoai.Request{Prompt: prompt.Triage(in), Images: refs})
	inv := res.Invocation
	log = log.With("mode", string(inv.Mode), "images", len(refs))
	if err != nil {
		log.Error("assessment call failed", "run_status", inv.Status, "state", inv.State.String(), "polls", inv.Polls,
			"error", err.Error(), "elapsed", s.now().Sub(start).String())
		return Outcome{CaseID: c.ID, Invocation: inv}, providerError(err)
	}

	rec := decision.Parse(res.Text)
	log.Info("assessment complete", "decision", string(rec.Decision), "confidence", rec.Confidence,
		"reasons", len(rec.Reasons), "run_status", inv.Status, "polls", inv.Polls, "elapsed", s.now().Sub(start).String())

	s.audit(ctx, log, c, inv, rec, len(refs))
	return Outcome{CaseID: c.ID, Record: rec, Invocation: inv}, nil
}

func (s *Service) checkImages(c models.SubmittedCase) error {
	if err := validate.ImageCount(len(c.Attachments), s.Env.MaxImages, s.Env.RequireImages); err != nil {
		return apierr.BadRequest(err.Error(), err)
	}
	for _, a := range c.Attachments {
		// logged only, the provider rejects what it cannot read
		if err := validate.ImageMIME(a.MimeType); err != nil {
			s.log().Warn("attachment is not an image", "case_id", c.ID, "filename", a.Filename, "error", err.Error())
		}
	}
	return nil
}

func (s *Service) normalize(ctx context.Context, c models.SubmittedCase) ([]imaging.Reference, error) {
	n := s.Images
	if n == nil {
		n = &imaging.Normalizer{Log: s.Log}
	}
	refs := n.Normalize(ctx, c.ID, c.Attachments)
	if len(refs) == 0 && len(c.Attachments) > 0 && s.Env.RequireImages {
		return nil, apierr.New(http.StatusInternalServerError, apierr.KindInternal, "image upload failed", nil)
	}
	return refs, nil
}

// audit writes the decision record when an audit table is configured. Failures are logged only.
func (s *Service) audit(ctx context.Context, log *logger.Logger, c models.SubmittedCase, inv aoai.Invocation, rec decision.Record, images int) {
	if s.Audit == nil {
		return
	}
	item := models.AssessmentItem{
		CaseID:     c.ID,
		Mode:       string(inv.Mode),
		Decision:   string(rec.Decision),
		Confidence: rec.Confidence,
		Reasons:    rec.Reasons,
		RawText:    rec.RawText,
		Images:     images,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
	}
	if c.Confirmed != nil {
		item.Material, item.DamageType = c.Confirmed.Material, c.Confirmed.DamageType
	}
	if err := s.Audit.PutAssessment(ctx, item); err != nil {
		log.Warn("audit write failed", "error", err.Error())
	}
}

// providerError maps invoker failures onto the error taxonomy.
func providerError(err error) error {
	var (
		he *aoai.HTTPError
		te *aoai.TimeoutError
		re *aoai.RunError
		ae *apierr.Error
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &te):
		return apierr.Timeout(err)
	case errors.As(err, &re):
		return apierr.RunFailed(err)
	case errors.As(err, &he):
		return apierr.Provider(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.Timeout(err)
	}
	return apierr.Internal(err)
}

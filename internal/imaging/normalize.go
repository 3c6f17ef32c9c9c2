// Package imaging turns uploaded photos into image references a vision model accepts.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/magicman/marv/internal/logger"
	"github.com/magicman/marv/internal/models"
)

// Images at or below this size on both sides are sent with the "low" detail hint.
const lowDetailMaxSide = 512

// Reference is one image as the provider sees it.
type Reference struct {
	// Either data:<mime>;base64,... or an https URL.
	URL      string
	MimeType string
	Filename string
	Detail   string // "low" | "high" | "auto"

	// Raw bytes, kept for providers that need a file upload instead of a URL.
	Bytes []byte
}

// Inline reports whether the reference is a data URI.
func (r Reference) Inline() bool { return len(r.URL) > 5 && r.URL[:5] == "data:" }

// Uploader stores an image and returns a URL the provider can read.
type Uploader interface {
	Upload(ctx context.Context, caseID string, n int, filename, contentType string, data []byte) (string, error)
}

// Normalizer converts attachments into references. With a nil Uploader images are inlined as
// data URIs.
type Normalizer struct {
	Uploader Uploader
	Detail   string
	Log      *logger.Logger
}

// Normalize drops empty attachments and returns one reference per remaining image. Upload
// failures are logged and skipped; if every upload fails the result is empty, not an error.
func (n *Normalizer) Normalize(ctx context.Context, caseID string, attachments []models.ImageAttachment) []Reference {
	log := n.Log
	if log == nil {
		log = logger.Nop()
	}
	out := make([]Reference, 0, len(attachments))
	failed := 0
	for i, a := range attachments {
		if a.Empty() {
			continue
		}
		ref := Reference{
			MimeType: a.MimeType,
			Filename: a.Filename,
			Detail:   n.detailFor(a.Bytes),
			Bytes:    a.Bytes,
		}
		if n.Uploader == nil {
			ref.URL = DataURI(a.MimeType, a.Bytes)
			out = append(out, ref)
			continue
		}
		url, err := n.Uploader.Upload(ctx, caseID, i, a.Filename, a.MimeType, a.Bytes)
		if err != nil {
			failed++
			log.Warn("image upload failed", "case_id", caseID, "index", i, "filename", a.Filename, "error", err.Error())
			continue
		}
		ref.URL = url
		out = append(out, ref)
	}
	if failed > 0 {
		log.Warn("continuing with uploaded subset", "case_id", caseID, "failed", failed, "uploaded", len(out))
	}
	return out
}

// DataURI encodes b as data:<mime>;base64,<payload>.
func DataURI(mimeType string, b []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func (n *Normalizer) detailFor(b []byte) string {
	def := n.Detail
	if def == "" {
		def = "auto"
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return def
	}
	if cfg.Width <= lowDetailMaxSide && cfg.Height <= lowDetailMaxSide {
		return "low"
	}
	return def
}

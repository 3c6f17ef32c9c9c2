// Package ingest decodes multipart/form-data submissions into text fields and buffered files.
package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/magicman/marv/internal/apierr"
	"github.com/magicman/marv/internal/httpx"
	"github.com/magicman/marv/internal/models"
)

const maxFieldBytes = 64 << 10

// Limits bounds what a single submission may carry.
type Limits struct {
	MaxFileBytes int64
}

// Form is a decoded submission.
type Form struct {
	Fields map[string]string
	Files  []models.ImageAttachment
}

// Field returns the trimmed value of the first non-empty named field.
func (f *Form) Field(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(f.Fields[n]); v != "" {
			return v
		}
	}
	return ""
}

// IsMultipart reports whether the headers declare multipart/form-data.
func IsMultipart(headers map[string]string) bool {
	mt, _, err := mime.ParseMediaType(httpx.Header(headers, "Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// Parse decodes body into fields and files. The body may be base64 encoded, as API Gateway
// does for binary payloads.
func Parse(headers map[string]string, body string, isBase64 bool, limits Limits) (*Form, error) {
	mt, params, err := mime.ParseMediaType(httpx.Header(headers, "Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		return nil, apierr.BadRequest("Content-Type must be multipart/form-data", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, apierr.BadRequest("multipart boundary missing", nil)
	}
	if body == "" {
		return nil, apierr.BadRequest("no raw body available for multipart parsing", nil)
	}

	raw := []byte(body)
	if isBase64 {
		raw, err = base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, apierr.BadRequest("request body is not valid base64", err)
		}
	}

	form := &Form{Fields: map[string]string{}}
	mr := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apierr.BadRequest("malformed multipart body", err)
		}
		if err := form.consume(part, limits); err != nil {
			_ = part.Close()
			return nil, err
		}
		_ = part.Close()
	}
	return form, nil
}

func (f *Form) consume(part *multipart.Part, limits Limits) error {
	name := part.FormName()
	if part.FileName() == "" {
		b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		if err != nil {
			return apierr.BadRequest("malformed multipart body", err)
		}
		if len(b) > maxFieldBytes {
			return apierr.BadRequest(fmt.Sprintf("field %q too large", name), nil)
		}
		f.Fields[name] = string(b)
		return nil
	}

	max := limits.MaxFileBytes
	if max <= 0 {
		max = 10 << 20
	}
	b, err := io.ReadAll(io.LimitReader(part, max+1))
	if err != nil {
		return apierr.BadRequest("malformed multipart body", err)
	}
	if int64(len(b)) > max {
		return apierr.BadRequest(fmt.Sprintf("file %q too large or limit reached", part.FileName()), nil)
	}
	f.Files = append(f.Files, models.ImageAttachment{
		Filename: part.FileName(),
		MimeType: contentType(part.Header.Get("Content-Type"), b),
		Bytes:    b,
	})
	return nil
}

// contentType keeps the declared type unless it is missing or generic, then sniffs the bytes.
func contentType(declared string, b []byte) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if len(b) == 0 {
		return "application/octet-stream"
	}
	sniffed, _, _ := mime.ParseMediaType(mimetype.Detect(b).String())
	if sniffed == "" {
		return "application/octet-stream"
	}
	return sniffed
}

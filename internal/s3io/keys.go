package s3io

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var unsafeNameRx = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ImageKey builds the object key for the n-th image of a case:
// cases/<yyyy>/<mm>/<dd>/<caseID>/<n>-<name>.
func ImageKey(caseID string, n int, filename string, at time.Time) string {
	return fmt.Sprintf("cases/%s/%s/%d-%s", at.UTC().Format("2006/01/02"), caseID, n, SanitizeName(filename))
}

// SanitizeName keeps the base name with only URL-safe characters, defaulting to "image".
func SanitizeName(s string) string {
	s = path.Base(strings.ReplaceAll(strings.TrimSpace(s), `\`, "/"))
	s = strings.Trim(unsafeNameRx.ReplaceAllString(s, "_"), "._")
	if s == "" {
		return "image"
	}
	if len(s) > 80 {
		s = s[len(s)-80:]
	}
	return s
}

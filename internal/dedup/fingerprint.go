package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"IncidentRadar/internal/domain"
)

var (
	cveExpr        = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
	nonAlnumExpr   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// Fingerprint is the storage identity of an item: sha256 over source, URL and title.
func Fingerprint(item domain.RawItem) string {
	basis := normalizeWhitespace(string(item.Source) + "|" + strings.ToLower(item.URL) + "|" + strings.ToLower(item.Title))
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// ExtractCVE returns the first CVE identifier in text, upper-cased, or "".
func ExtractCVE(text string) string {
	return strings.ToUpper(cveExpr.FindString(text))
}

func normalizeWhitespace(value string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(value, " "))
}

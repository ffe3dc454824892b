package secure

import "regexp"

var (
	credentialCharset = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	angleBrackets     = regexp.MustCompile(`[<>]`)
	scriptURI         = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerAttr  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// sanitizeCredential strips every character outside the allowed
// credential charset.
func sanitizeCredential(raw string) string {
	return credentialCharset.ReplaceAllString(raw, "")
}

// SanitizeText strips the markup fragments most likely to smuggle script
// into rendered output: angle brackets, javascript: URIs, and inline
// event-handler attributes.
func SanitizeText(s string) string {
	s = angleBrackets.ReplaceAllString(s, "")
	s = scriptURI.ReplaceAllString(s, "")
	s = eventHandlerAttr.ReplaceAllString(s, "")
	return s
}

package guardian

// Report combines both scan surfaces for one text blob.
type Report struct {
	Sanitization SanitizationResult `json:"sanitization"`
	Injection    InjectionResult    `json:"injection"`
}

// Scanner runs the sanitizer and the injection filter together. This is
// the surface the CLI and server expose.
type Scanner struct {
	sanitizer *Sanitizer
	filter    *InjectionFilter
}

// NewScanner creates a combined scanner with high-entropy secret
// detection enabled and medium injection sensitivity.
func NewScanner() *Scanner {
	return &Scanner{
		sanitizer: NewSanitizer(true),
		filter:    NewInjectionFilter("medium"),
	}
}

// Scan sanitizes the text and checks it for injection patterns. The
// injection scan runs over the sanitized text so redacted secrets are
// not re-reported as encoded payloads.
func (s *Scanner) Scan(text string) Report {
	sanitization := s.sanitizer.Sanitize(text)
	return Report{
		Sanitization: sanitization,
		Injection:    s.filter.Scan(sanitization.SanitizedText),
	}
}

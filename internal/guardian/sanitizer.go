// Package guardian detects secrets, PII, and prompt-injection patterns
// in text before it leaves the local machine.
package guardian

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Entropy thresholds for catching secrets the regex tables miss.
const (
	highEntropyThreshold = 4.5
	minSecretLength      = 20
)

// RedactedItem describes one redacted span.
type RedactedItem struct {
	Type           SensitiveType `json:"type"`
	OriginalLength int           `json:"original_length"`
	Line           int           `json:"line_number"`
	Token          string        `json:"token"`
}

// SanitizationResult is the outcome of sanitizing one text blob.
type SanitizationResult struct {
	SanitizedText   string         `json:"sanitized_text"`
	RedactedItems   []RedactedItem `json:"redacted_items"`
	PIIDetected     bool           `json:"pii_detected"`
	SecretsDetected bool           `json:"secrets_detected"`
}

// Sanitizer redacts sensitive spans from text, replacing each with a
// numbered token like [REDACTED_API_KEY_1]. Safe for concurrent use.
type Sanitizer struct {
	enableHighEntropy bool
}

// NewSanitizer creates a sanitizer. High-entropy detection catches
// secret-shaped strings no explicit pattern recognizes.
func NewSanitizer(enableHighEntropy bool) *Sanitizer {
	return &Sanitizer{enableHighEntropy: enableHighEntropy}
}

type span struct {
	start, end int
	stype      SensitiveType
}

// Sanitize redacts all detected sensitive spans and reports what was
// removed. Overlapping matches resolve to the earliest span.
func (s *Sanitizer) Sanitize(text string) SanitizationResult {
	var spans []span
	for _, p := range sensitivePatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if p.group > 0 && loc[2*p.group] >= 0 {
				start, end = loc[2*p.group], loc[2*p.group+1]
			}
			if p.stype == TypeIPAddress && localIPRe.MatchString(text[start:end]) {
				continue
			}
			spans = append(spans, span{start: start, end: end, stype: p.stype})
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	var kept []span
	for _, sp := range spans {
		if len(kept) > 0 && sp.start < kept[len(kept)-1].end {
			continue
		}
		kept = append(kept, sp)
	}

	result := SanitizationResult{}
	counters := make(map[SensitiveType]int)

	var b strings.Builder
	prev := 0
	for _, sp := range kept {
		counters[sp.stype]++
		token := redactionToken(sp.stype, counters[sp.stype])

		result.RedactedItems = append(result.RedactedItems, RedactedItem{
			Type:           sp.stype,
			OriginalLength: sp.end - sp.start,
			Line:           strings.Count(text[:sp.start], "\n") + 1,
			Token:          token,
		})
		if _, secret := secretTypes[sp.stype]; secret {
			result.SecretsDetected = true
		} else {
			result.PIIDetected = true
		}

		b.WriteString(text[prev:sp.start])
		b.WriteString(token)
		prev = sp.end
	}
	b.WriteString(text[prev:])
	sanitized := b.String()

	if s.enableHighEntropy {
		sanitized = s.redactHighEntropy(sanitized, counters, &result)
	}

	result.SanitizedText = sanitized
	return result
}

// QuickCheck reports whether the text contains any sensitive pattern,
// without building a full redaction.
func (s *Sanitizer) QuickCheck(text string) bool {
	for _, p := range sensitivePatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if p.stype == TypeIPAddress && localIPRe.MatchString(text[loc[0]:loc[1]]) {
				continue
			}
			return true
		}
	}
	return false
}

// entropyCandidateRe matches secret-shaped alphanumeric runs.
var entropyCandidateRe = regexp.MustCompile(`\b[a-zA-Z0-9_\-/+=]{20,64}\b`)

// entropyCandidates extracts potential secret values from one line.
func entropyCandidates(line string) []string {
	return entropyCandidateRe.FindAllString(line, -1)
}

// redactHighEntropy replaces secret-shaped high-entropy strings that
// survived pattern redaction.
func (s *Sanitizer) redactHighEntropy(text string, counters map[SensitiveType]int, result *SanitizationResult) string {
	lines := strings.Split(text, "\n")
	for lineNum, line := range lines {
		for _, candidate := range entropyCandidates(line) {
			if strings.HasPrefix(candidate, "[REDACTED_") {
				continue
			}
			if shannonEntropy(candidate) < highEntropyThreshold {
				continue
			}

			counters[TypeSecret]++
			token := redactionToken(TypeSecret, counters[TypeSecret])
			result.RedactedItems = append(result.RedactedItems, RedactedItem{
				Type:           TypeSecret,
				OriginalLength: len(candidate),
				Line:           lineNum + 1,
				Token:          token,
			})
			result.SecretsDetected = true
			text = strings.Replace(text, candidate, token, 1)
		}
	}
	return text
}

// shannonEntropy returns the Shannon entropy of a string in bits per
// character.
func shannonEntropy(text string) float64 {
	if text == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range text {
		counts[r]++
		total++
	}

	var entropy float64
	for _, count := range counts {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func redactionToken(stype SensitiveType, n int) string {
	return fmt.Sprintf("[REDACTED_%s_%d]", strings.ToUpper(string(stype)), n)
}

package guardian

import "strings"

// InjectionMatch is one detected injection pattern.
type InjectionMatch struct {
	Type        InjectionType `json:"type"`
	MatchedText string        `json:"matched_text"`
	Line        int           `json:"line_number"`
	Severity    string        `json:"severity"`
	Description string        `json:"description"`
}

// InjectionResult is the outcome of an injection scan.
type InjectionResult struct {
	IsSafe    bool             `json:"is_safe"`
	Matches   []InjectionMatch `json:"matches"`
	RiskScore float64          `json:"risk_score"`
}

var severityWeights = map[string]float64{
	SeverityHigh:   1.0,
	SeverityMedium: 0.5,
	SeverityLow:    0.2,
}

// InjectionFilter detects prompt-injection patterns in text that may be
// fed to an LLM. Sensitivity selects which severities to report:
// "low" reports only high-severity patterns, "medium" adds medium,
// "high" reports everything.
type InjectionFilter struct {
	threshold map[string]struct{}
}

// NewInjectionFilter creates a filter at the given sensitivity. Unknown
// values fall back to medium.
func NewInjectionFilter(sensitivity string) *InjectionFilter {
	var severities []string
	switch sensitivity {
	case "low":
		severities = []string{SeverityHigh}
	case "high":
		severities = []string{SeverityHigh, SeverityMedium, SeverityLow}
	default:
		severities = []string{SeverityHigh, SeverityMedium}
	}

	threshold := make(map[string]struct{}, len(severities))
	for _, s := range severities {
		threshold[s] = struct{}{}
	}
	return &InjectionFilter{threshold: threshold}
}

// Scan checks text line by line for injection patterns and computes an
// aggregate risk score in [0, 1].
func (f *InjectionFilter) Scan(text string) InjectionResult {
	var matches []InjectionMatch
	lines := strings.Split(text, "\n")

	for _, p := range injectionPatterns {
		if _, ok := f.threshold[p.severity]; !ok {
			continue
		}
		for lineNum, line := range lines {
			for _, m := range p.re.FindAllString(line, -1) {
				matches = append(matches, InjectionMatch{
					Type:        p.itype,
					MatchedText: truncateMatch(m),
					Line:        lineNum + 1,
					Severity:    p.severity,
					Description: injectionDescriptions[p.itype],
				})
			}
		}
	}

	risk := 0.0
	if len(matches) > 0 {
		var total float64
		for _, m := range matches {
			total += severityWeights[m.Severity]
		}
		// Three high-severity matches saturate the score.
		risk = min(1.0, total/3.0)
	}

	return InjectionResult{
		IsSafe:    len(matches) == 0,
		Matches:   matches,
		RiskScore: risk,
	}
}

// QuickCheck reports whether the text is free of injection patterns at
// the configured sensitivity.
func (f *InjectionFilter) QuickCheck(text string) bool {
	for _, p := range injectionPatterns {
		if _, ok := f.threshold[p.severity]; !ok {
			continue
		}
		if p.re.MatchString(text) {
			return false
		}
	}
	return true
}

// SecurityFlags renders one human-readable flag per detected injection
// type.
func (f *InjectionFilter) SecurityFlags(text string) []string {
	result := f.Scan(text)
	if result.IsSafe {
		return nil
	}

	var flags []string
	seen := make(map[InjectionType]struct{})
	for _, m := range result.Matches {
		if _, ok := seen[m.Type]; ok {
			continue
		}
		seen[m.Type] = struct{}{}
		flags = append(flags, strings.ToUpper(m.Severity)+": "+m.Description)
	}
	return flags
}

func truncateMatch(m string) string {
	if len(m) > 50 {
		return m[:50] + "..."
	}
	return m
}

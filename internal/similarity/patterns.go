package similarity

import "regexp"

// Pattern is a forbidden expression in generated content.
type Pattern struct {
	Name     string
	Regexp   *regexp.Regexp
	Severity Severity
}

// DefaultPatterns returns the built-in forbidden patterns: copyright
// notices, references to official past papers, brand and character names,
// citation markers and AI disclaimers.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:     "copyright_notice",
			Regexp:   regexp.MustCompile(`(?i)(©|\(c\)\s*\d{4}|\bcopyright\b|all rights reserved)`),
			Severity: Critical,
		},
		{
			Name:     "official_exam_reference",
			Regexp:   regexp.MustCompile(`(?i)(eiken|英検)\s*(official|公式|past (exam|paper|test)s?|過去問)`),
			Severity: Critical,
		},
		{
			Name:     "brand_name",
			Regexp:   regexp.MustCompile(`(?i)\b(disney|pok[eé]mon|nintendo|ghibli|marvel|harry potter|doraemon|sanrio|hello kitty|starbucks)\b`),
			Severity: High,
		},
		{
			Name:     "ai_disclaimer",
			Regexp:   regexp.MustCompile(`(?i)\b(as an ai|as a language model|i'm sorry, but i|i cannot (help|assist|provide))`),
			Severity: High,
		},
		{
			Name:     "citation_marker",
			Regexp:   regexp.MustCompile(`(?i)(\[\d+\]|\bet al\.|\bretrieved from\b|\bsource:)`),
			Severity: Medium,
		},
	}
}

package scraper

import (
	"fmt"
	"strings"
)

// Detector inspects extracted text and reports whether the page should be
// skipped, with a short reason for the skip log.
type Detector func(text string) (skip bool, reason string)

// loginWallPhrases mark pages that hide their content behind an account.
var loginWallPhrases = []string{
	"please login",
	"please log in",
	"sign in to continue",
}

// DefaultDetectors returns the standard skip checks applied to every
// extracted page: a minimum-readability threshold and a login-wall sniff.
func DefaultDetectors(minLen int) []Detector {
	return []Detector{
		DetectTooShort(minLen),
		DetectLoginWall,
	}
}

// DetectTooShort skips pages whose extracted text is below minLen characters.
func DetectTooShort(minLen int) Detector {
	return func(text string) (bool, string) {
		if len(text) < minLen {
			return true, fmt.Sprintf("text below %d chars", minLen)
		}
		return false, ""
	}
}

// DetectLoginWall skips pages whose text contains a login-wall phrase.
func DetectLoginWall(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, phrase := range loginWallPhrases {
		if strings.Contains(lower, phrase) {
			return true, "login wall"
		}
	}
	return false, ""
}

// ShouldSkip runs text through all detectors and returns the first skip
// reason, if any.
func ShouldSkip(text string, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if skip, reason := d(text); skip {
			return true, reason
		}
	}
	return false, ""
}

// Package sieve decides which candidate links are worth fetching. It is a
// pure predicate layer: recording an accepted domain as visited is the
// pipeline's responsibility.
package sieve

import "strings"

// DefaultBlocklist rejects social networks and forum-style sites whose pages
// rarely extract into usable company text.
var DefaultBlocklist = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"youtube.com",
	"tiktok.com",
	"reddit.com",
	"quora.com",
	"glassdoor.com",
	"medium.com",
}

// aggregatorMarkers flag reference and news sites that are never the
// company's own homepage.
var aggregatorMarkers = []string{"wikipedia", "linkedin", "bloomberg", "reuters"}

// Decision explains why a candidate was rejected.
type Decision int

const (
	Accept Decision = iota
	RejectBlocked
	RejectVisited
)

// Filter screens candidate domains against a blocklist and the set of
// domains already visited in the current run.
type Filter struct {
	blocklist []string
}

// New creates a Filter. An empty blocklist falls back to DefaultBlocklist.
func New(blocklist []string) *Filter {
	if len(blocklist) == 0 {
		blocklist = DefaultBlocklist
	}
	return &Filter{blocklist: blocklist}
}

// Check evaluates one normalized domain. Blocklist entries match as
// substrings (so "m.facebook.com" is caught by "facebook.com"); the visited
// check is an exact, case-insensitive domain match.
func (f *Filter) Check(domain string, visited map[string]struct{}) Decision {
	d := strings.ToLower(domain)
	for _, blocked := range f.blocklist {
		if strings.Contains(d, blocked) {
			return RejectBlocked
		}
	}
	if _, ok := visited[d]; ok {
		return RejectVisited
	}
	return Accept
}

// IsOfficialCandidate reports whether a domain could plausibly be the
// subject's own site, i.e. it carries none of the aggregator markers. The
// first accepted candidate passing this test seeds the logo lookup.
func IsOfficialCandidate(domain string) bool {
	d := strings.ToLower(domain)
	for _, marker := range aggregatorMarkers {
		if strings.Contains(d, marker) {
			return false
		}
	}
	return true
}

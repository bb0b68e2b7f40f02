// Package planner turns a subject name and a free-text requirement into a
// bounded, deduplicated set of search queries. It performs no network access.
package planner

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how many queries a plan produces.
type Mode int

const (
	// ModeFull emits the broad identity query plus requirement-derived queries.
	ModeFull Mode = iota
	// ModeLite emits a single query combining the subject and requirement.
	// Used for competitor sub-pipelines where latency matters more than
	// coverage.
	ModeLite
)

var (
	topicSplit     = regexp.MustCompile(`[\n,]`)
	interrogatives = regexp.MustCompile(`(?i)\b(what is|how many|give me|tell me about)\b`)
	spaces         = regexp.MustCompile(`\s+`)
)

// Planner builds query plans. MaxTopics caps the number of
// requirement-derived queries added in full mode.
type Planner struct {
	MaxTopics int
}

// New returns a Planner with the given topic cap. A cap below 1 falls back
// to 3.
func New(maxTopics int) *Planner {
	if maxTopics < 1 {
		maxTopics = 3
	}
	return &Planner{MaxTopics: maxTopics}
}

// Plan returns the ordered, deduplicated query set for one subject. In full
// mode the first query is the broad identity query, followed by topics split
// from the requirement on newlines and commas; each topic is stripped of
// leading interrogative phrases and discarded if shorter than 3 characters.
// In lite mode the plan is a single query folding the requirement into the
// subject, or the broad query when the requirement is unusable.
func (p *Planner) Plan(subject, requirement string, mode Mode) []string {
	queries := []string{fmt.Sprintf("%q official corporate profile overview facts", subject)}

	if mode == ModeLite {
		if clean := cleanTopic(requirement); len(clean) > 2 {
			return []string{fmt.Sprintf("%q %s", subject, clean)}
		}
		return queries
	}

	if mode == ModeFull {
		topics := topicSplit.Split(requirement, -1)
		added := 0
		for _, topic := range topics {
			if added >= p.MaxTopics {
				break
			}
			clean := cleanTopic(topic)
			if len(clean) <= 2 {
				continue
			}
			queries = append(queries, fmt.Sprintf("%q %s", subject, clean))
			added++
		}
	}

	return dedup(queries)
}

// SplitCompetitors parses a comma-separated competitor list supplied by the
// caller, trimming whitespace and dropping empty entries.
func SplitCompetitors(csv string) []string {
	var names []string
	for _, part := range strings.Split(csv, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func cleanTopic(topic string) string {
	clean := interrogatives.ReplaceAllString(topic, "")
	clean = spaces.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// dedup removes duplicates case- and whitespace-insensitively while keeping
// first-occurrence order.
func dedup(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		key := strings.ToLower(spaces.ReplaceAllString(q, " "))
		key = strings.TrimSpace(key)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

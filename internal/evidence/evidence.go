// Package evidence defines the scraped-text units a research run collects
// for one subject, and the collector that aggregates them.
package evidence

import "strings"

// Item is one usable page of evidence: its normalized source domain, the
// exact URL fetched, and the extracted readable text (already truncated to
// the configured maximum length).
type Item struct {
	Domain string `json:"source_domain"`
	URL    string `json:"source_url"`
	Text   string `json:"raw_text"`
}

// Set is the full evidence for one subject. VisitedDomains always equals
// the set of domains appearing in Items.
type Set struct {
	Subject        string   `json:"subject"`
	Items          []Item   `json:"items"`
	VisitedDomains []string `json:"visited_domains"`
	LogoURL        string   `json:"logo,omitempty"`
}

// Collect aggregates fetched items into a Set, deriving the visited-domain
// list from the items themselves. An empty item slice is a valid empty Set,
// which callers interpret as "no data found".
func Collect(subject string, items []Item) *Set {
	set := &Set{Subject: subject, Items: items}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		d := strings.ToLower(item.Domain)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		set.VisitedDomains = append(set.VisitedDomains, d)
	}
	return set
}

// Texts returns the item texts in order, ready to hand to the validation
// stage.
func (s *Set) Texts() []string {
	texts := make([]string, len(s.Items))
	for i, item := range s.Items {
		texts[i] = item.Text
	}
	return texts
}

// Blob joins the texts of the first n items into a single block, the shape
// the comparison stage consumes for a competitor. A non-positive n takes
// all items.
func (s *Set) Blob(n int) string {
	if n <= 0 || n > len(s.Items) {
		n = len(s.Items)
	}
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = s.Items[i].Text
	}
	return strings.Join(texts, "\n")
}

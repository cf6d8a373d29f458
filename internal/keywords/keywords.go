// Package keywords normalizes guest messages and classifier hints into the
// keyword sets threads are matched on.
package keywords

import (
	"sort"
	"strings"

	"github.com/brightstay/concierge/internal/models"
)

const minTokenLen = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "you": {}, "are": {}, "was": {},
	"have": {}, "has": {}, "had": {}, "can": {}, "could": {}, "would": {},
	"please": {}, "there": {}, "this": {}, "that": {}, "with": {},
	"about": {}, "some": {}, "more": {}, "also": {}, "get": {}, "need": {},
	"want": {}, "like": {}, "just": {},
}

// Extract produces the deduplicated keyword set for a message, unioned
// with whatever domain tokens the classifier supplied for the intent.
func Extract(message string, details models.IntentDetails) []string {
	set := make(map[string]struct{})
	addTokens(set, message)

	for _, kw := range details.FaqKeywords {
		addTokens(set, kw)
	}
	for _, kw := range details.ComplaintKeywords {
		addTokens(set, kw)
	}
	// For requests and upsells both the guest's literal phrasing and the
	// normalized item name participate in matching.
	addTokens(set, details.ItemPhrase)
	addTokens(set, details.ItemName)

	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func addTokens(set map[string]struct{}, text string) {
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(raw, ".,!?;:\"'()")
		if len(tok) < minTokenLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
}

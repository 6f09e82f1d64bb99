package app

import (
	"strings"

	"clinicsite/pkg/domain"
)

// MatchFAQ finds the FAQ answering question. A case-insensitive exact match
// wins over a substring match in either direction; within each phase the
// first FAQ in insertion order wins. Blank input never matches.
func MatchFAQ(faqs []domain.FAQ, question string) (domain.FAQ, bool) {
	q := normalize(question)
	if q == "" {
		return domain.FAQ{}, false
	}
	for _, f := range faqs {
		if normalize(f.Question) == q {
			return f, true
		}
	}
	for _, f := range faqs {
		stored := normalize(f.Question)
		if stored == "" {
			continue
		}
		if strings.Contains(stored, q) || strings.Contains(q, stored) {
			return f, true
		}
	}
	return domain.FAQ{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

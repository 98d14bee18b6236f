// Package triage derives the admin's visible list, counters and selection
// from the latest message snapshot.
package triage

import (
	"strings"

	"portfolio-backend/internal/domain"
)

// StatusFilter narrows the list to one status. FilterAll disables it.
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterNew     StatusFilter = StatusFilter(domain.StatusNew)
	FilterRead    StatusFilter = StatusFilter(domain.StatusRead)
	FilterReplied StatusFilter = StatusFilter(domain.StatusReplied)
)

// Filters lists the filters in the order the UI cycles through them.
var Filters = []StatusFilter{FilterAll, FilterNew, FilterRead, FilterReplied}

// ParseFilter maps s to a filter. Unknown or empty values mean FilterAll.
func ParseFilter(s string) (StatusFilter, bool) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterNew, FilterRead, FilterReplied:
		return f, true
	case "":
		return FilterAll, true
	}
	return FilterAll, false
}

// Matches reports whether m passes the search term and status filter. The
// term is matched case-insensitively against name, email and message body.
func Matches(m domain.ContactMessage, search string, filter StatusFilter) bool {
	if filter != FilterAll && filter != "" && string(m.Status) != string(filter) {
		return false
	}
	term := strings.ToLower(search)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Name), term) ||
		strings.Contains(strings.ToLower(m.Email), term) ||
		strings.Contains(strings.ToLower(m.Message), term)
}

// Filter returns a new slice with the messages that match, in input order.
func Filter(msgs []domain.ContactMessage, search string, filter StatusFilter) []domain.ContactMessage {
	out := make([]domain.ContactMessage, 0, len(msgs))
	for _, m := range msgs {
		if Matches(m, search, filter) {
			out = append(out, m)
		}
	}
	return out
}

// ComputeKPIs counts over the whole sequence, ignoring search and filter.
func ComputeKPIs(msgs []domain.ContactMessage) domain.MessageKPIs {
	k := domain.MessageKPIs{Total: len(msgs)}
	for _, m := range msgs {
		if m.Status == domain.StatusNew {
			k.New++
		}
	}
	return k
}

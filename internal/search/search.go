// Package search ranks and filters already-fetched commits on the client.
package search

import (
	"fmt"
	"strings"
	"time"

	"haven/internal/conventional"
	"haven/shared/types"

	"github.com/sahilm/fuzzy"
)

// Match is one ranked result.
type Match struct {
	Commit shared.CommitWithReview
	Score  int
}

type haystack []shared.CommitWithReview

func (h haystack) Len() int { return len(h) }

func (h haystack) String(i int) string {
	c := h[i]
	subject, _, _ := strings.Cut(c.Message, "\n")
	return subject + " " + c.CommitHash + " " + c.AuthorName
}

// Search ranks commits against query by fuzzy score over the subject
// line, hash and author. An empty query returns every commit in input
// order with a zero score.
func Search(commits []shared.CommitWithReview, query string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]Match, len(commits))
		for i, c := range commits {
			out[i] = Match{Commit: c}
		}
		return out
	}

	found := fuzzy.FindFrom(query, haystack(commits))
	out := make([]Match, len(found))
	for i, m := range found {
		out[i] = Match{Commit: commits[m.Index], Score: m.Score}
	}
	return out
}

// Filter narrows a listing the way the backend's query parameters do.
// Zero fields match everything. DateTo is inclusive.
type Filter struct {
	RepositoryID int
	Message      string
	Author       string
	DateFrom     time.Time
	DateTo       time.Time
	Status       shared.ReviewStatus
	Type         string
}

// ParseDate accepts an ISO date or an RFC 3339 timestamp. dateOnly
// reports an ISO date.
func ParseDate(s string) (t time.Time, dateOnly bool, err error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, true, nil
}

// ParseUntil parses an inclusive upper bound. A bare date covers the
// whole day; a timestamp is taken as given.
func ParseUntil(s string) (time.Time, error) {
	t, dateOnly, err := ParseDate(s)
	if err != nil || !dateOnly {
		return t, err
	}
	return t.Add(24*time.Hour - time.Nanosecond), nil
}

// FromQuery builds the Filter equivalent of a backend listing query.
// The branch filter has no client-side equivalent and is rejected.
func FromQuery(q shared.CommitQuery) (Filter, error) {
	if q.Branch != "" {
		return Filter{}, fmt.Errorf("branch filter %q needs the backend", q.Branch)
	}
	f := Filter{
		RepositoryID: q.RepositoryID,
		Message:      q.Search,
		Author:       q.Author,
		Status:       shared.ReviewStatus(q.Status),
	}
	var err error
	if f.DateFrom, _, err = ParseDate(q.DateFrom); err != nil {
		return Filter{}, err
	}
	if f.DateTo, err = ParseUntil(q.DateTo); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func (f Filter) Match(c shared.CommitWithReview) bool {
	if f.RepositoryID != 0 && c.RepositoryID != f.RepositoryID {
		return false
	}
	if f.Message != "" && !strings.Contains(strings.ToLower(c.Message), strings.ToLower(f.Message)) {
		return false
	}
	if f.Author != "" {
		a := strings.ToLower(f.Author)
		if !strings.Contains(strings.ToLower(c.AuthorName), a) &&
			!strings.Contains(strings.ToLower(c.AuthorEmail), a) {
			return false
		}
	}
	if !f.DateFrom.IsZero() && c.CommittedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && c.CommittedAt.After(f.DateTo) {
		return false
	}
	if f.Status != "" {
		status := shared.StatusPendingReview
		if c.ReviewStatus != nil {
			status = *c.ReviewStatus
		}
		if status != f.Status {
			return false
		}
	}
	if f.Type != "" && conventional.Parse(c.Message).Type != strings.ToLower(f.Type) {
		return false
	}
	return true
}

// Apply returns the commits f matches, preserving order.
func (f Filter) Apply(commits []shared.CommitWithReview) []shared.CommitWithReview {
	var out []shared.CommitWithReview
	for _, c := range commits {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

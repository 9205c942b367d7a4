package comment

import (
	"strings"
	"time"
	"unicode/utf8"

	"haven/internal/errors"
)

// MaxContentLength mirrors the backend's limit on comment bodies.
const MaxContentLength = 10000

// ReviewComment is an inline comment anchored to one (file, line) pair.
type ReviewComment struct {
	ID         int        `json:"id"`
	CommitID   int        `json:"commit_id"`
	ReviewerID int        `json:"reviewer_id"`
	FilePath   string     `json:"file_path"`
	LineNumber int        `json:"line_number"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Draft is the body of POST /commits/{id}/comments.
type Draft struct {
	ReviewerID int    `json:"reviewer_id"`
	LineNumber int    `json:"line_number"`
	FilePath   string `json:"file_path"`
	Content    string `json:"content"`
}

// Normalize trims the content in place and checks the draft.
func (d *Draft) Normalize() error {
	d.Content = strings.TrimSpace(d.Content)

	fields := map[string]string{}
	if d.Content == "" {
		fields["content"] = "must not be empty"
	} else if utf8.RuneCountInString(d.Content) > MaxContentLength {
		fields["content"] = "must be at most 10000 characters"
	}
	if d.FilePath == "" {
		fields["file_path"] = "is required"
	}
	if d.LineNumber < 1 {
		fields["line_number"] = "must be positive"
	}
	if d.ReviewerID < 1 {
		fields["reviewer_id"] = "must be positive"
	}

	if len(fields) > 0 {
		return errors.ValidationError("invalid comment", fields)
	}
	return nil
}

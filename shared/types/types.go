// Package shared holds the wire records exchanged with the review backend.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is carried as an opaque string; only the CLI validates it.
type ReviewStatus string

const (
	StatusPendingReview ReviewStatus = "pending_review"
	StatusApproved      ReviewStatus = "approved"
	StatusNeedsRevision ReviewStatus = "needs_revision"
	StatusDraft         ReviewStatus = "draft"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusNeedsRevision, StatusDraft:
		return true
	}
	return false
}

type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// CommitInfo is the backend's commit record.
type CommitInfo struct {
	ID              int        `json:"id"`
	RepositoryID    int        `json:"repository_id"`
	CommitHash      string     `json:"commit_hash"`
	Message         string     `json:"message"`
	AuthorName      string     `json:"author_name"`
	AuthorEmail     string     `json:"author_email"`
	CommitterName   string     `json:"committer_name"`
	CommitterEmail  string     `json:"committer_email"`
	CommittedAt     time.Time  `json:"committed_at"`
	DiffStats       DiffStats  `json:"diff_stats"`
	DiffHTMLPath    *string    `json:"diff_html_path,omitempty"`
	DiffGeneratedAt *time.Time `json:"diff_generated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ShortHash is the first eight characters of the hash.
func (c CommitInfo) ShortHash() string {
	if len(c.CommitHash) > 8 {
		return c.CommitHash[:8]
	}
	return c.CommitHash
}

// CommitWithReview is a list row of the paginated-with-reviews endpoint.
type CommitWithReview struct {
	CommitInfo
	ReviewStatus   *ReviewStatus `json:"review_status,omitempty"`
	ReviewCount    int           `json:"review_count"`
	LatestReviewAt *time.Time    `json:"latest_review_at,omitempty"`
}

// Page is a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// CommitReview is a review status record.
type CommitReview struct {
	ID         int          `json:"id"`
	CommitID   int          `json:"commit_id"`
	ReviewerID int          `json:"reviewer_id"`
	Status     ReviewStatus `json:"status"`
	Notes      *string      `json:"notes,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type ReviewRequest struct {
	ReviewerID int          `json:"reviewer_id"`
	Status     ReviewStatus `json:"status"`
	Notes      string       `json:"notes,omitempty"`
}

// DiffGenerated is returned by POST generate-diff.
type DiffGenerated struct {
	CommitID        int        `json:"commit_id"`
	DiffHTMLPath    string     `json:"diff_html_path"`
	DiffGeneratedAt *time.Time `json:"diff_generated_at,omitempty"`
}

type Repository struct {
	ID             int       `json:"id"`
	RepositoryHash *string   `json:"repository_hash,omitempty"`
	Slug           *string   `json:"slug,omitempty"`
	Name           string    `json:"name"`
	FullName       string    `json:"full_name"`
	URL            string    `json:"url"`
	RemoteURL      *string   `json:"remote_url,omitempty"`
	Branch         string    `json:"branch"`
	Description    *string   `json:"description,omitempty"`
	IsLocal        bool      `json:"is_local"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Present on GET /repositories/{hash} only.
	CommitCount   int     `json:"commit_count,omitempty"`
	BranchCount   int     `json:"branch_count,omitempty"`
	CurrentBranch *string `json:"current_branch,omitempty"`
}

type RepositoryStats struct {
	TotalCommits     int        `json:"total_commits"`
	TotalBranches    int        `json:"total_branches"`
	LatestCommitDate *time.Time `json:"latest_commit_date,omitempty"`
	OldestCommitDate *time.Time `json:"oldest_commit_date,omitempty"`
}

type LoadCommitsRequest struct {
	Branch string `json:"branch"`
	Limit  *int   `json:"limit,omitempty"`
}

type LoadCommitsResult struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	TaskID  *string `json:"task_id,omitempty"`
}

// CommitQuery holds the filters of the paginated commit listing.
type CommitQuery struct {
	RepositoryID int
	Page         int
	PageSize     int
	Search       string
	Author       string
	DateFrom     string
	DateTo       string
	Status       string
	Branch       string
	WithReviews  bool
}

// Record is a free-form JSON object kept by the backend's records store.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RecordList is one offset page of records.
type RecordList struct {
	Items  []Record `json:"items"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// RecordData is the body of record create, replace and merge calls.
type RecordData struct {
	Data map[string]any `json:"data"`
}

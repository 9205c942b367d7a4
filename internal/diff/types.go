// internal/diff/types.go
package diff

// LineType tags a diff line. Values match the backend's diff-json payload.
type LineType string

const (
	Context LineType = "context"
	Insert  LineType = "insert"
	Delete  LineType = "delete"
)

// Line represents a single line in a diff with its type and content.
// Context lines carry both numbers, inserts only NewNumber, deletes only
// OldNumber. Nothing enforces that; renderers show a missing number blank.
type Line struct {
	Content   string   `json:"content"`
	Type      LineType `json:"type"`
	OldNumber *int     `json:"oldNumber,omitempty"`
	NewNumber *int     `json:"newNumber,omitempty"`
}

// Block is one hunk. Line order is significant.
type Block struct {
	Header       string `json:"header,omitempty"`
	StartLineOld *int   `json:"startLineOld,omitempty"`
	StartLineNew *int   `json:"startLineNew,omitempty"`
	Lines        []Line `json:"lines"`
}

// File is one changed file of a commit diff.
type File struct {
	OldName      string  `json:"oldName,omitempty"`
	NewName      string  `json:"newName,omitempty"`
	Blocks       []Block `json:"blocks"`
	AddedLines   int     `json:"addedLines"`
	DeletedLines int     `json:"deletedLines"`
	Language     string  `json:"language,omitempty"`
	IsGitDiff    bool    `json:"isGitDiff,omitempty"`
	IsCombined   bool    `json:"isCombined,omitempty"`
}

// CommitSummary is the commit header embedded in a diff document.
type CommitSummary struct {
	Hash        string `json:"hash"`
	ShortHash   string `json:"short_hash"`
	Summary     string `json:"summary"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	CommittedAt string `json:"committed_at"`
}

// Document is the body of GET /api/v1/commits/{id}/diff-json.
type Document struct {
	Commit CommitSummary `json:"commit"`
	Files  []File        `json:"files"`
}

// DisplayName is the name a file is shown under.
func DisplayName(f File) string {
	switch {
	case f.NewName != "":
		return f.NewName
	case f.OldName != "":
		return f.OldName
	default:
		return "Unknown file"
	}
}

// Num is a convenience for building optional line numbers.
func Num(n int) *int {
	return &n
}

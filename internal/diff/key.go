package diff

import "fmt"

// Side identifies the column of a split view. Unified views use SideNone.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return ""
	}
}

// LineKey identifies one rendered line slot for the lifetime of a view.
// It is never persisted.
type LineKey string

// Key derives the slot key from its position. The fields are separated by
// characters that cannot appear in a formatted int, so distinct tuples
// never produce the same key.
func Key(fileIndex, blockIndex, lineIndex int, side Side) LineKey {
	k := fmt.Sprintf("f%d:b%d:l%d", fileIndex, blockIndex, lineIndex)
	if side != SideNone {
		k += ":" + side.String()
	}
	return LineKey(k)
}

// Commentable reports whether a composer may be opened on line in the
// given column. Context lines never are; in split view the left column
// accepts deletes only and the right column inserts only.
func Commentable(l *Line, side Side) bool {
	if l == nil {
		return false
	}
	switch side {
	case SideLeft:
		return l.Type == Delete
	case SideRight:
		return l.Type == Insert
	default:
		return l.Type == Insert || l.Type == Delete
	}
}

// AnchorLine is the line number a comment on l attaches to: the new-file
// number for inserts and context, the old-file number for deletes.
func AnchorLine(l *Line) (int, bool) {
	if l == nil {
		return 0, false
	}
	n := l.NewNumber
	if l.Type == Delete {
		n = l.OldNumber
	}
	if n == nil {
		return 0, false
	}
	return *n, true
}

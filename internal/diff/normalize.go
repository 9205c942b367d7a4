// internal/diff/normalize.go
package diff

import (
	"fmt"
	"strings"
)

// Mode selects how a file is laid out for display.
type Mode string

const (
	Unified Mode = "unified"
	Split   Mode = "split"
)

// ParseMode accepts "unified" or "split", case-insensitively. An empty
// string yields Unified.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Unified):
		return Unified, nil
	case string(Split):
		return Split, nil
	default:
		return "", fmt.Errorf("unknown view mode %q (want unified or split)", s)
	}
}

// Plan is the render plan for one file.
type Plan struct {
	Mode   Mode
	Name   string
	Blocks []PlanBlock
}

// PlanBlock keeps one hunk boundary. In unified mode Lines holds the body;
// in split mode Left and Right do, always with equal length. A nil entry
// in Left or Right is an empty cell. Context lines are shared: Left[i] and
// Right[i] point at the same Line.
type PlanBlock struct {
	Header string
	Lines  []*Line
	Left   []*Line
	Right  []*Line
}

// Rows is the number of display rows in the block body.
func (b PlanBlock) Rows() int {
	if b.Lines != nil {
		return len(b.Lines)
	}
	return len(b.Left)
}

// Empty reports whether the block has no body. Empty blocks still render
// their header.
func (b PlanBlock) Empty() bool {
	return b.Rows() == 0
}

// Normalize builds the render plan of file for mode. It never fails: any
// line type other than insert or delete is laid out as context, and
// missing line numbers are left nil.
func Normalize(file File, mode Mode) Plan {
	plan := Plan{
		Mode:   mode,
		Name:   DisplayName(file),
		Blocks: make([]PlanBlock, 0, len(file.Blocks)),
	}

	for _, block := range file.Blocks {
		lines := make([]Line, len(block.Lines))
		for i, l := range block.Lines {
			lines[i] = l
			lines[i].Content = stripSign(l)
		}

		pb := PlanBlock{Header: block.Header}
		if mode == Split {
			pb.Left, pb.Right = partition(lines)
		} else {
			pb.Lines = make([]*Line, len(lines))
			for i := range lines {
				pb.Lines[i] = &lines[i]
			}
		}
		plan.Blocks = append(plan.Blocks, pb)
	}

	return plan
}

// partition splits a hunk into aligned left/right columns.
func partition(lines []Line) (left, right []*Line) {
	left = make([]*Line, 0, len(lines))
	right = make([]*Line, 0, len(lines))

	for i := range lines {
		l := &lines[i]
		switch l.Type {
		case Delete:
			left = append(left, l)
			right = append(right, nil)
		case Insert:
			left = append(left, nil)
			right = append(right, l)
		default:
			left = append(left, l)
			right = append(right, l)
		}
	}

	// Pad the shorter column. Padding only appends.
	for len(left) < len(right) {
		left = append(left, nil)
	}
	for len(right) < len(left) {
		right = append(right, nil)
	}

	return left, right
}

// stripSign removes a leading diff marker left in content by the server:
// "+" on inserts, "-" on deletes, a space on context lines. A marker that
// does not match the line's type is content and stays.
func stripSign(l Line) string {
	if l.Content == "" {
		return ""
	}
	var sign byte
	switch l.Type {
	case Insert:
		sign = '+'
	case Delete:
		sign = '-'
	default:
		sign = ' '
	}
	if l.Content[0] == sign {
		return l.Content[1:]
	}
	return l.Content
}

// Sign is the gutter marker for a line.
func Sign(l *Line) string {
	if l == nil {
		return " "
	}
	switch l.Type {
	case Insert:
		return "+"
	case Delete:
		return "-"
	default:
		return " "
	}
}

// FormatNumber renders an optional line number, blank when absent.
func FormatNumber(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}

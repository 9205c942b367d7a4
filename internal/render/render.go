// Package render joins a diff document, its layout plan, line keys and
// anchored comments into one view model shared by the gateway and the
// terminal printer.
package render

import (
	"haven/internal/comment"
	"haven/internal/conventional"
	"haven/internal/diff"
)

type Line struct {
	Key          diff.LineKey            `json:"key"`
	Type         diff.LineType           `json:"type"`
	Sign         string                  `json:"sign"`
	Content      string                  `json:"content"`
	OldNumber    *int                    `json:"old_number,omitempty"`
	NewNumber    *int                    `json:"new_number,omitempty"`
	Commentable  bool                    `json:"commentable"`
	Anchor       *int                    `json:"anchor,omitempty"`
	Comments     []comment.ReviewComment `json:"comments,omitempty"`
	ComposerOpen bool                    `json:"composer_open,omitempty"`
}

// Row is one line of a split view. A nil side is an empty cell.
type Row struct {
	Left  *Line `json:"left"`
	Right *Line `json:"right"`
}

// Block carries Lines in unified mode and Rows in split mode.
type Block struct {
	Header string `json:"header,omitempty"`
	Lines  []Line `json:"lines,omitempty"`
	Rows   []Row  `json:"rows,omitempty"`
}

type File struct {
	Name         string  `json:"name"`
	OldName      string  `json:"old_name,omitempty"`
	NewName      string  `json:"new_name,omitempty"`
	Language     string  `json:"language,omitempty"`
	AddedLines   int     `json:"added_lines"`
	DeletedLines int     `json:"deleted_lines"`
	CommentCount int     `json:"comment_count"`
	Blocks       []Block `json:"blocks"`
}

type View struct {
	Commit diff.CommitSummary  `json:"commit"`
	Header conventional.Header `json:"header"`
	Tag    *conventional.Tag   `json:"tag,omitempty"`
	Stats  diff.Stats          `json:"stats"`
	Mode   diff.Mode           `json:"mode"`
	Files  []File              `json:"files"`
}

// Options carries the per-view state a render depends on. Both fields
// may be left zero.
type Options struct {
	Comments comment.Index
	Active   func(diff.LineKey) bool
}

// Build lays out doc for mode. Comments are attached under every line
// whose anchor matches; in split mode a context line shows them on the
// right side only.
func Build(doc diff.Document, mode diff.Mode, opts Options) View {
	msg := doc.Commit.Message
	if msg == "" {
		msg = doc.Commit.Summary
	}
	v := View{
		Commit: doc.Commit,
		Header: conventional.Parse(msg),
		Stats:  diff.Count(doc.Files),
		Mode:   mode,
		Files:  make([]File, 0, len(doc.Files)),
	}
	if tag, ok := conventional.Lookup(v.Header.Type); ok {
		v.Tag = &tag
	}

	b := builder{opts: opts}
	for fi, f := range doc.Files {
		v.Files = append(v.Files, b.file(fi, f, mode))
	}
	return v
}

type builder struct {
	opts Options
}

func (b builder) file(fi int, f diff.File, mode diff.Mode) File {
	plan := diff.Normalize(f, mode)
	out := File{
		Name:         plan.Name,
		OldName:      f.OldName,
		NewName:      f.NewName,
		Language:     f.Language,
		AddedLines:   f.AddedLines,
		DeletedLines: f.DeletedLines,
		CommentCount: b.opts.Comments.CountForFile(plan.Name),
		Blocks:       make([]Block, 0, len(plan.Blocks)),
	}

	for bi, pb := range plan.Blocks {
		block := Block{Header: pb.Header}
		if mode == diff.Split {
			block.Rows = make([]Row, len(pb.Left))
			for i := range pb.Left {
				block.Rows[i] = Row{
					Left:  b.cell(plan.Name, pb.Left[i], diff.Key(fi, bi, i, diff.SideLeft), diff.SideLeft),
					Right: b.cell(plan.Name, pb.Right[i], diff.Key(fi, bi, i, diff.SideRight), diff.SideRight),
				}
			}
		} else {
			block.Lines = make([]Line, len(pb.Lines))
			for i, l := range pb.Lines {
				block.Lines[i] = b.line(plan.Name, l, diff.Key(fi, bi, i, diff.SideNone), diff.SideNone)
			}
		}
		out.Blocks = append(out.Blocks, block)
	}
	return out
}

func (b builder) cell(path string, l *diff.Line, key diff.LineKey, side diff.Side) *Line {
	if l == nil {
		return nil
	}
	line := b.line(path, l, key, side)
	return &line
}

func (b builder) line(path string, l *diff.Line, key diff.LineKey, side diff.Side) Line {
	out := Line{
		Key:         key,
		Type:        l.Type,
		Sign:        diff.Sign(l),
		Content:     l.Content,
		OldNumber:   l.OldNumber,
		NewNumber:   l.NewNumber,
		Commentable: diff.Commentable(l, side),
	}
	if out.Commentable && b.opts.Active != nil {
		out.ComposerOpen = b.opts.Active(key)
	}

	if anchor, ok := diff.AnchorLine(l); ok {
		out.Anchor = &anchor
		sharedContext := side == diff.SideLeft && l.Type != diff.Delete
		if !sharedContext {
			out.Comments = b.opts.Comments.At(path, anchor)
		}
	}
	return out
}

// Find returns the line with key, if the view has one.
func (v View) Find(key diff.LineKey) (File, *Line, bool) {
	for _, f := range v.Files {
		for _, blk := range f.Blocks {
			for i := range blk.Lines {
				if blk.Lines[i].Key == key {
					return f, &blk.Lines[i], true
				}
			}
			for _, r := range blk.Rows {
				if r.Left != nil && r.Left.Key == key {
					return f, r.Left, true
				}
				if r.Right != nil && r.Right.Key == key {
					return f, r.Right, true
				}
			}
		}
	}
	return File{}, nil, false
}

// Package termview prints render views to a terminal.
package termview

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/render"
	"haven/shared/types"

	"github.com/fatih/color"
)

var (
	added    = color.New(color.FgGreen)
	removed  = color.New(color.FgRed)
	header   = color.New(color.FgCyan)
	fileName = color.New(color.Bold)
	faint    = color.New(color.Faint)
	note     = color.New(color.FgYellow)
	failure  = color.New(color.FgRed, color.Bold)
)

var tagColors = map[string]color.Attribute{
	"purple": color.FgMagenta,
	"red":    color.FgRed,
	"blue":   color.FgBlue,
	"pink":   color.FgHiMagenta,
	"green":  color.FgGreen,
	"orange": color.FgHiYellow,
	"yellow": color.FgYellow,
	"gray":   color.FgHiBlack,
	"indigo": color.FgHiBlue,
}

type Printer struct {
	w     io.Writer
	width int
	// ShowKeys prefixes commentable lines with their key so they can be
	// passed to "comment add --key".
	ShowKeys bool
	// Failure, when set, reports the last save error of a line's composer.
	Failure func(key diff.LineKey) error
}

func New(w io.Writer, width int) *Printer {
	if width < 40 {
		width = 120
	}
	return &Printer{w: w, width: width}
}

// View prints the commit header and every file of v.
func (p *Printer) View(v render.View) {
	p.commit(v)
	for _, f := range v.Files {
		p.File(f, v.Mode)
	}
}

func (p *Printer) commit(v render.View) {
	hash := v.Commit.ShortHash
	if hash == "" {
		hash = v.Commit.Hash
	}
	fmt.Fprintf(p.w, "%s ", header.Sprint(hash))
	if v.Tag != nil {
		tag := v.Tag.Emoji + " " + v.Tag.Label
		if v.Header.Breaking {
			tag += " !"
		}
		color.New(tagColors[v.Tag.Color]).Fprint(p.w, "["+tag+"] ")
	}
	fmt.Fprintln(p.w, v.Header.Subject)
	if v.Commit.AuthorName != "" {
		faint.Fprintf(p.w, "%s <%s>  %s\n", v.Commit.AuthorName, v.Commit.AuthorEmail, v.Commit.CommittedAt)
	}
	fmt.Fprintf(p.w, "%d files changed, %s, %s\n\n",
		v.Stats.FilesChanged,
		added.Sprintf("%d insertions(+)", v.Stats.Insertions),
		removed.Sprintf("%d deletions(-)", v.Stats.Deletions),
	)
}

// File prints one file of a view laid out for mode.
func (p *Printer) File(f render.File, mode diff.Mode) {
	fileName.Fprint(p.w, f.Name)
	fmt.Fprintf(p.w, " %s %s", added.Sprintf("+%d", f.AddedLines), removed.Sprintf("-%d", f.DeletedLines))
	if f.CommentCount > 0 {
		note.Fprintf(p.w, " (%d comments)", f.CommentCount)
	}
	fmt.Fprintln(p.w)

	for _, b := range f.Blocks {
		if b.Header != "" {
			header.Fprintln(p.w, b.Header)
		}
		if mode == diff.Split {
			for _, r := range b.Rows {
				p.row(r)
			}
			continue
		}
		for _, l := range b.Lines {
			p.unified(l)
		}
	}
	fmt.Fprintln(p.w)
}

func (p *Printer) unified(l render.Line) {
	gutter := fmt.Sprintf("%5s %5s ", diff.FormatNumber(l.OldNumber), diff.FormatNumber(l.NewNumber))
	faint.Fprint(p.w, gutter)
	p.content(l.Type, l.Sign+l.Content)
	p.key(l)
	fmt.Fprintln(p.w)
	p.annotations(l, "            ")
}

func (p *Printer) row(r render.Row) {
	col := (p.width - 3) / 2
	fmt.Fprint(p.w, p.cell(r.Left, col, func(l *render.Line) *int { return l.OldNumber }))
	faint.Fprint(p.w, " │ ")
	fmt.Fprintln(p.w, p.cell(r.Right, col, func(l *render.Line) *int { return l.NewNumber }))

	if r.Left != nil {
		p.annotations(*r.Left, "")
	}
	if r.Right != nil {
		p.annotations(*r.Right, strings.Repeat(" ", col+3))
	}
}

func (p *Printer) cell(l *render.Line, width int, number func(*render.Line) *int) string {
	if l == nil {
		return strings.Repeat(" ", width)
	}
	text := fmt.Sprintf("%5s %s%s", diff.FormatNumber(number(l)), l.Sign, l.Content)
	if p.ShowKeys && l.Commentable {
		suffix := " [" + string(l.Key) + "]"
		text = fit(text, width-utf8.RuneCountInString(suffix)) + suffix
	}
	text = fit(text, width)
	switch l.Type {
	case diff.Insert:
		return added.Sprint(text)
	case diff.Delete:
		return removed.Sprint(text)
	default:
		return text
	}
}

// fit truncates or pads s to exactly width runes.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n > width {
		r := []rune(s)
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-n)
}

func (p *Printer) content(t diff.LineType, s string) {
	switch t {
	case diff.Insert:
		added.Fprint(p.w, s)
	case diff.Delete:
		removed.Fprint(p.w, s)
	default:
		fmt.Fprint(p.w, s)
	}
}

func (p *Printer) key(l render.Line) {
	if p.ShowKeys && l.Commentable {
		faint.Fprintf(p.w, "  [%s]", l.Key)
	}
}

func (p *Printer) annotations(l render.Line, indent string) {
	for _, c := range l.Comments {
		note.Fprintf(p.w, "%s  💬 #%d reviewer %d: ", indent, c.ID, c.ReviewerID)
		fmt.Fprintln(p.w, c.Content)
	}
	if !l.ComposerOpen {
		return
	}
	faint.Fprintf(p.w, "%s  ✎ composer open\n", indent)
	if p.Failure == nil {
		return
	}
	if err := p.Failure(l.Key); err != nil {
		failure.Fprintf(p.w, "%s  ✗ %v\n", indent, err)
	}
}

// Comments prints a comment list grouped in input order.
func (p *Printer) Comments(list []comment.ReviewComment) {
	if len(list) == 0 {
		fmt.Fprintln(p.w, "No comments")
		return
	}
	for _, c := range list {
		fileName.Fprintf(p.w, "%s:%d", c.FilePath, c.LineNumber)
		faint.Fprintf(p.w, "  #%d reviewer %d %s\n", c.ID, c.ReviewerID, c.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(p.w, "  %s\n", c.Content)
	}
}

// Record prints one record with its data as indented JSON.
func (p *Printer) Record(r shared.Record) {
	header.Fprint(p.w, r.ID.String())
	faint.Fprintf(p.w, "  created %s updated %s\n",
		r.CreatedAt.Format("2006-01-02 15:04"), r.UpdatedAt.Format("2006-01-02 15:04"))
	data, err := json.MarshalIndent(r.Data, "  ", "  ")
	if err != nil {
		failure.Fprintf(p.w, "  ✗ %v\n", err)
		return
	}
	fmt.Fprintf(p.w, "  %s\n", data)
}

// Records prints one line per record and the position of the page.
func (p *Printer) Records(list shared.RecordList) {
	if len(list.Items) == 0 {
		fmt.Fprintln(p.w, "No records")
	}
	for _, r := range list.Items {
		data, _ := json.Marshal(r.Data)
		fmt.Fprintf(p.w, "%s  %s\n", header.Sprint(r.ID.String()), strings.TrimRight(fit(string(data), p.width-38), " "))
	}
	faint.Fprintf(p.w, "%d-%d of %d\n", min(list.Offset+1, list.Total), list.Offset+len(list.Items), list.Total)
}

// Commits prints one line per commit with its badge and review status.
func (p *Printer) Commits(rows []CommitLine) {
	for _, r := range rows {
		fmt.Fprintf(p.w, "%s ", header.Sprint(r.Commit.ShortHash()))
		if r.Badge != "" {
			fmt.Fprint(p.w, r.Badge+" ")
		}
		fmt.Fprint(p.w, r.Subject)
		faint.Fprintf(p.w, "  %s %s", r.Commit.AuthorName, r.Commit.CommittedAt.Format("2006-01-02"))
		if r.Commit.ReviewStatus != nil {
			fmt.Fprint(p.w, " ", statusColor(*r.Commit.ReviewStatus).Sprint(*r.Commit.ReviewStatus))
		}
		fmt.Fprintln(p.w)
	}
}

// CommitLine is a commit prepared for listing.
type CommitLine struct {
	Commit  shared.CommitWithReview
	Badge   string
	Subject string
}

func statusColor(s shared.ReviewStatus) *color.Color {
	switch s {
	case shared.StatusApproved:
		return added
	case shared.StatusNeedsRevision:
		return removed
	case shared.StatusDraft:
		return faint
	default:
		return note
	}
}

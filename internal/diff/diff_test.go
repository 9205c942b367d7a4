package diff

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx(old, new int, content string) Line {
	return Line{Type: Context, Content: content, OldNumber: Num(old), NewNumber: Num(new)}
}

func ins(new int, content string) Line {
	return Line{Type: Insert, Content: content, NewNumber: Num(new)}
}

func del(old int, content string) Line {
	return Line{Type: Delete, Content: content, OldNumber: Num(old)}
}

func sampleFile() File {
	return File{
		OldName: "pkg/server.go",
		NewName: "pkg/server.go",
		Blocks: []Block{
			{
				Header: "@@ -1,4 +1,5 @@",
				Lines: []Line{
					ctx(1, 1, " package pkg"),
					del(2, "-import \"log\""),
					del(3, "import \"fmt\""),
					ins(2, "+import ("),
					ins(3, "\t\"fmt\""),
					ins(4, ")"),
					ctx(4, 5, ""),
				},
			},
			{Header: "@@ -20,0 +21,0 @@"},
			{
				Lines: []Line{
					del(30, "return nil"),
					ins(31, "return err"),
				},
			},
		},
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Unified, false},
		{"unified", Unified, false},
		{"SPLIT", Split, false},
		{" split ", Split, false},
		{"side-by-side", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Unified(t *testing.T) {
	plan := Normalize(sampleFile(), Unified)

	assert.Equal(t, Unified, plan.Mode)
	assert.Equal(t, "pkg/server.go", plan.Name)
	require.Len(t, plan.Blocks, 3)

	first := plan.Blocks[0]
	assert.Equal(t, "@@ -1,4 +1,5 @@", first.Header)
	assert.Nil(t, first.Left)
	assert.Nil(t, first.Right)
	require.Len(t, first.Lines, 7)

	// order is exactly as received
	assert.Equal(t, Context, first.Lines[0].Type)
	assert.Equal(t, Delete, first.Lines[1].Type)
	assert.Equal(t, Insert, first.Lines[3].Type)

	// a stray marker matching the line type is removed, nothing else is
	assert.Equal(t, "package pkg", first.Lines[0].Content)
	assert.Equal(t, `import "log"`, first.Lines[1].Content)
	assert.Equal(t, `import "fmt"`, first.Lines[2].Content)
	assert.Equal(t, "import (", first.Lines[3].Content)
	assert.Equal(t, "\t\"fmt\"", first.Lines[4].Content)

	// empty block is kept as a boundary
	assert.Equal(t, "@@ -20,0 +21,0 @@", plan.Blocks[1].Header)
	assert.True(t, plan.Blocks[1].Empty())
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	f := sampleFile()
	Normalize(f, Unified)
	Normalize(f, Split)
	assert.Equal(t, "-import \"log\"", f.Blocks[0].Lines[1].Content)
}

func TestNormalize_Split(t *testing.T) {
	plan := Normalize(sampleFile(), Split)
	require.Len(t, plan.Blocks, 3)

	b := plan.Blocks[0]
	assert.Nil(t, b.Lines)
	require.Len(t, b.Left, 7)
	require.Len(t, b.Right, 7)

	// context: same line on both sides, same index
	assert.Same(t, b.Left[0], b.Right[0])
	assert.Equal(t, Context, b.Left[0].Type)

	// deletes: left only
	assert.Equal(t, Delete, b.Left[1].Type)
	assert.Nil(t, b.Right[1])
	assert.Nil(t, b.Right[2])

	// inserts: right only
	assert.Nil(t, b.Left[3])
	assert.Equal(t, Insert, b.Right[3].Type)
	assert.Equal(t, "import (", b.Right[3].Content)

	assert.Same(t, b.Left[6], b.Right[6])

	assert.True(t, plan.Blocks[1].Empty())
	assert.Len(t, plan.Blocks[1].Left, 0)
	assert.Len(t, plan.Blocks[1].Right, 0)
}

func TestNormalize_SplitInvariants(t *testing.T) {
	// Every permutation of a short mixed hunk keeps the column invariants.
	kinds := []LineType{Context, Insert, Delete}
	for mask := 0; mask < 3*3*3*3*3; mask++ {
		var lines []Line
		m := mask
		for i := 0; i < 5; i++ {
			lines = append(lines, Line{Type: kinds[m%3], Content: fmt.Sprint(i)})
			m /= 3
		}
		plan := Normalize(File{Blocks: []Block{{Lines: lines}}}, Split)
		b := plan.Blocks[0]

		require.Equal(t, len(b.Left), len(b.Right))
		for i, l := range lines {
			switch l.Type {
			case Context:
				require.NotNil(t, b.Left[i])
				require.Same(t, b.Left[i], b.Right[i])
			case Delete:
				require.Nil(t, b.Right[i])
				require.Equal(t, Delete, b.Left[i].Type)
			case Insert:
				require.Nil(t, b.Left[i])
				require.Equal(t, Insert, b.Right[i].Type)
			}
		}
	}
}

func TestNormalize_Permissive(t *testing.T) {
	f := File{Blocks: []Block{{Lines: []Line{
		{Type: Insert, Content: "no number"},
		{Type: "modified", Content: "unknown type"},
		{Type: Delete},
	}}}}

	assert.NotPanics(t, func() {
		plan := Normalize(f, Split)
		b := plan.Blocks[0]
		require.Len(t, b.Left, 3)
		assert.Equal(t, "", FormatNumber(b.Right[0].NewNumber))
		// unknown types lay out as context
		assert.Same(t, b.Left[1], b.Right[1])
	})

	assert.Equal(t, "Unknown file", Normalize(f, Unified).Name)
}

func TestNormalize_FromJSON(t *testing.T) {
	payload := `{
		"commit": {"hash": "abc123", "short_hash": "abc123", "message": "fix: x"},
		"files": [{
			"newName": "a.txt",
			"addedLines": 1, "deletedLines": 1,
			"blocks": [{"header": "@@ -1 +1 @@", "lines": [
				{"content": "old", "type": "delete", "oldNumber": 1},
				{"content": "new", "type": "insert", "newNumber": 1}
			]}]
		}]
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))
	require.Len(t, doc.Files, 1)

	plan := Normalize(doc.Files[0], Split)
	b := plan.Blocks[0]
	require.Len(t, b.Left, 2)
	assert.Equal(t, "1", FormatNumber(b.Left[0].OldNumber))
	assert.Nil(t, b.Left[0].NewNumber)
	assert.Equal(t, "1", FormatNumber(b.Right[1].NewNumber))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "new.go", DisplayName(File{OldName: "old.go", NewName: "new.go"}))
	assert.Equal(t, "old.go", DisplayName(File{OldName: "old.go"}))
	assert.Equal(t, "Unknown file", DisplayName(File{}))
}

func TestKey_Distinct(t *testing.T) {
	seen := make(map[LineKey][4]int)
	sides := []Side{SideNone, SideLeft, SideRight}

	for f := 0; f < 3; f++ {
		for b := 0; b < 5; b++ {
			for l := 0; l < 50; l++ {
				for _, s := range sides {
					k := Key(f, b, l, s)
					if prev, dup := seen[k]; dup {
						t.Fatalf("key %q produced by %v and %v", k, prev, [4]int{f, b, l, int(s)})
					}
					seen[k] = [4]int{f, b, l, int(s)}
				}
			}
		}
	}
	assert.Len(t, seen, 3*5*50*3)
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, Key(1, 2, 3, SideLeft), Key(1, 2, 3, SideLeft))
	assert.NotEqual(t, Key(1, 2, 3, SideLeft), Key(1, 2, 3, SideRight))
	assert.Equal(t, LineKey("f0:b1:l12"), Key(0, 1, 12, SideNone))
	assert.Equal(t, LineKey("f0:b1:l12:right"), Key(0, 1, 12, SideRight))
	// ambiguous concatenations stay apart
	assert.NotEqual(t, Key(1, 11, 1, SideNone), Key(11, 1, 1, SideNone))
}

func TestCommentable(t *testing.T) {
	c, i, d := ctx(1, 1, ""), ins(2, ""), del(2, "")

	tests := []struct {
		name string
		line *Line
		side Side
		want bool
	}{
		{"unified insert", &i, SideNone, true},
		{"unified delete", &d, SideNone, true},
		{"unified context", &c, SideNone, false},
		{"left delete", &d, SideLeft, true},
		{"left context", &c, SideLeft, false},
		{"right insert", &i, SideRight, true},
		{"right context", &c, SideRight, false},
		{"right delete", &d, SideRight, false},
		{"padding", nil, SideLeft, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Commentable(tt.line, tt.side))
		})
	}
}

func TestAnchorLine(t *testing.T) {
	d := del(7, "")
	n, ok := AnchorLine(&d)
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	i := ins(9, "")
	n, ok = AnchorLine(&i)
	assert.True(t, ok)
	assert.Equal(t, 9, n)

	broken := Line{Type: Insert}
	_, ok = AnchorLine(&broken)
	assert.False(t, ok)

	_, ok = AnchorLine(nil)
	assert.False(t, ok)
}

func TestCount(t *testing.T) {
	s := Count([]File{sampleFile(), {NewName: "empty.txt"}})
	assert.Equal(t, Stats{FilesChanged: 2, Insertions: 4, Deletions: 3, TotalChanges: 7}, s)
}

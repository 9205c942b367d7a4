package comment

// Resolve returns the comments anchored exactly at (filePath, line), in
// the order they appear in all.
func Resolve(all []ReviewComment, filePath string, line int) []ReviewComment {
	var out []ReviewComment
	for _, c := range all {
		if c.FilePath == filePath && c.LineNumber == line {
			out = append(out, c)
		}
	}
	return out
}

type anchor struct {
	path string
	line int
}

// Index answers Resolve queries in constant time. It is built once per
// fetched comment list and gives the same answers as Resolve.
type Index struct {
	byAnchor map[anchor][]ReviewComment
	files    map[string]int
}

func NewIndex(all []ReviewComment) Index {
	idx := Index{
		byAnchor: make(map[anchor][]ReviewComment),
		files:    make(map[string]int),
	}
	for _, c := range all {
		a := anchor{c.FilePath, c.LineNumber}
		idx.byAnchor[a] = append(idx.byAnchor[a], c)
		idx.files[c.FilePath]++
	}
	return idx
}

func (i Index) At(filePath string, line int) []ReviewComment {
	return i.byAnchor[anchor{filePath, line}]
}

// CountForFile is the number of comments on any line of filePath.
func (i Index) CountForFile(filePath string) int {
	return i.files[filePath]
}

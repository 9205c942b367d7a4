package diff

// Stats summarises a set of files the way the diff header shows it.
type Stats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
	TotalChanges int `json:"total_changes"`
}

// Count tallies inserted and deleted lines across files. The per-file
// addedLines/deletedLines fields are ignored; the lines are the truth.
func Count(files []File) Stats {
	var s Stats
	for _, f := range files {
		s.FilesChanged++
		for _, b := range f.Blocks {
			for _, l := range b.Lines {
				switch l.Type {
				case Insert:
					s.Insertions++
				case Delete:
					s.Deletions++
				}
			}
		}
	}
	s.TotalChanges = s.Insertions + s.Deletions
	return s
}

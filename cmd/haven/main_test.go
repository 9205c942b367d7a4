package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"haven/client"
	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/snapshot"
	"haven/internal/storage"
	"haven/internal/termview"
	"haven/shared/types"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diffJSON = `{
	"commit": {"hash": "abc123", "short_hash": "abc123", "message": "fix: off by one"},
	"files": [{
		"newName": "loop.go",
		"addedLines": 1, "deletedLines": 1,
		"blocks": [{"header": "@@ -3,2 +3,2 @@", "lines": [
			{"content": "for i := 0; i < n; i++ {", "type": "context", "oldNumber": 3, "newNumber": 3},
			{"content": "x := a[i+1]", "type": "delete", "oldNumber": 4},
			{"content": "x := a[i]", "type": "insert", "newNumber": 4}
		]}]
	}]
}`

// fakeBackend serves one commit and keeps posted comments.
type fakeBackend struct {
	mu       sync.Mutex
	comments []comment.ReviewComment
	commits  []shared.CommitWithReview
	failPost bool
	records  map[uuid.UUID]shared.Record
	writes   []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/commits/1/diff-json":
		w.Write([]byte(diffJSON))
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/commits/1/comments":
		json.NewEncoder(w).Encode(b.comments)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/commits/1/comments" && b.failPost:
		http.Error(w, "db locked", http.StatusInternalServerError)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/commits/1/comments":
		var d comment.Draft
		json.NewDecoder(r.Body).Decode(&d)
		c := comment.ReviewComment{
			ID: len(b.comments) + 1, CommitID: 1, ReviewerID: d.ReviewerID,
			FilePath: d.FilePath, LineNumber: d.LineNumber, Content: d.Content,
			CreatedAt: time.Now(),
		}
		b.comments = append(b.comments, c)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(c)
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/commits/paginated-with-reviews":
		json.NewEncoder(w).Encode(shared.Page[shared.CommitWithReview]{
			Items: b.commits, Total: len(b.commits), Page: 1, PageSize: 20, TotalPages: 1,
		})
	case strings.HasPrefix(r.URL.Path, "/api/v1/records"):
		b.serveRecords(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) serveRecords(w http.ResponseWriter, r *http.Request) {
	if b.records == nil {
		b.records = map[uuid.UUID]shared.Record{}
	}
	if r.Method != http.MethodGet {
		b.writes = append(b.writes, r.Method)
	}
	if r.URL.Path == "/api/v1/records" {
		if r.Method == http.MethodGet {
			list := shared.RecordList{Items: []shared.Record{}, Total: len(b.records), Limit: 20}
			for _, rec := range b.records {
				list.Items = append(list.Items, rec)
			}
			json.NewEncoder(w).Encode(list)
			return
		}
		var body shared.RecordData
		json.NewDecoder(r.Body).Decode(&body)
		rec := shared.Record{ID: uuid.New(), Data: body.Data, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		b.records[rec.ID] = rec
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/v1/records/"))
	rec, ok := b.records[id]
	if err != nil || !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodDelete:
		delete(b.records, id)
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPut, http.MethodPatch:
		var body shared.RecordData
		json.NewDecoder(r.Body).Decode(&body)
		if r.Method == http.MethodPut {
			rec.Data = map[string]any{}
		}
		for k, v := range body.Data {
			rec.Data[k] = v
		}
		b.records[id] = rec
	}
	json.NewEncoder(w).Encode(rec)
}

func setupApp(t *testing.T) (*app, *fakeBackend, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	backend := &fakeBackend{comments: []comment.ReviewComment{}}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	db, err := storage.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := snapshot.New(db, snapshot.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	c := client.New(srv.URL)
	return &app{
		client: c,
		db:     db,
		store:  store,
		source: snapshot.NewSource(c, store, false, nil),
		out:    termview.New(&buf, 100),
	}, backend, &buf
}

func TestAddComment_Unified(t *testing.T) {
	a, backend, buf := setupApp(t)

	err := addComment(context.Background(), a, 1, "f0:b0:l2", "  index was right  ", 5)
	require.NoError(t, err)

	require.Len(t, backend.comments, 1)
	got := backend.comments[0]
	assert.Equal(t, "loop.go", got.FilePath)
	assert.Equal(t, 4, got.LineNumber)
	assert.Equal(t, 5, got.ReviewerID)
	assert.Equal(t, "index was right", got.Content)

	out := buf.String()
	assert.Contains(t, out, "loop.go")
	assert.Contains(t, out, "💬 #1 reviewer 5: index was right")
	assert.NotContains(t, out, "composer open")
}

func TestAddComment_SaveFailureShowsComposer(t *testing.T) {
	a, backend, buf := setupApp(t)
	backend.failPost = true

	err := addComment(context.Background(), a, 1, "f0:b0:l2", "index was right", 1)
	require.Error(t, err)
	assert.Empty(t, backend.comments)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "composer open"))
	assert.Contains(t, out, "✗ POST /commits/1/comments: backend returned 500")
}

func TestAddComment_SplitLeftAnchorsOldNumber(t *testing.T) {
	a, backend, _ := setupApp(t)

	require.NoError(t, addComment(context.Background(), a, 1, "f0:b0:l1:left", "was this intended?", 1))
	require.Len(t, backend.comments, 1)
	assert.Equal(t, 4, backend.comments[0].LineNumber)
}

func TestAddComment_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  diff.LineKey
		body string
	}{
		{"context line", "f0:b0:l0", "hi"},
		{"insert on left", "f0:b0:l2:left", "hi"},
		{"unknown key", "f3:b0:l0", "hi"},
		{"blank body", "f0:b0:l2", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, backend, _ := setupApp(t)
			err := addComment(context.Background(), a, 1, tt.key, tt.body, 1)
			assert.Error(t, err)
			assert.Empty(t, backend.comments)
		})
	}
}

func TestAddComment_OfflineRefusesWrites(t *testing.T) {
	a, backend, _ := setupApp(t)
	ctx := context.Background()

	// warm the snapshot, then go offline
	_, _, err := a.source.Document(ctx, 1)
	require.NoError(t, err)
	a.source = snapshot.NewSource(a.client, a.store, true, nil)

	err = addComment(ctx, a, 1, "f0:b0:l2", "later", 1)
	assert.ErrorIs(t, err, snapshot.ErrOffline)
	assert.Empty(t, backend.comments)
}

func sampleCommits() []shared.CommitWithReview {
	at := time.Date(2025, 7, 16, 9, 0, 0, 0, time.UTC)
	return []shared.CommitWithReview{
		{CommitInfo: shared.CommitInfo{ID: 1, RepositoryID: 1, CommitHash: "abc123", Message: "fix: off by one", AuthorName: "ana", CommittedAt: at}},
		{CommitInfo: shared.CommitInfo{ID: 2, RepositoryID: 1, CommitHash: "def456", Message: "feat(ui): dark mode", AuthorName: "bo", CommittedAt: at.Add(time.Hour)}},
	}
}

func TestListCommits(t *testing.T) {
	a, backend, buf := setupApp(t)
	backend.commits = sampleCommits()
	ctx := context.Background()

	require.NoError(t, listCommits(ctx, a, shared.CommitQuery{}, "", "feat"))
	out := buf.String()
	assert.Contains(t, out, "dark mode")
	assert.NotContains(t, out, "off by one")

	// the rows seen above answer the same listing offline
	a.source = snapshot.NewSource(a.client, a.store, true, nil)
	tests := []struct {
		name  string
		query shared.CommitQuery
		kind  string
		want  string
		skip  string
	}{
		{"author", shared.CommitQuery{Author: "ana"}, "", "off by one", "dark mode"},
		{"until bare date", shared.CommitQuery{DateTo: "2025-07-16"}, "fix", "off by one", "dark mode"},
		{"type any case", shared.CommitQuery{}, "FEAT", "dark mode", "off by one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			require.NoError(t, listCommits(ctx, a, tt.query, "", tt.kind))
			assert.Contains(t, buf.String(), tt.want)
			assert.NotContains(t, buf.String(), tt.skip)
		})
	}
}

func TestListCommits_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		query shared.CommitQuery
		kind  string
		want  string
	}{
		{"unknown type", shared.CommitQuery{}, "feature", "build, chore, ci"},
		{"bad since", shared.CommitQuery{DateFrom: "16/07/2025"}, "", "16/07/2025"},
		{"bad until", shared.CommitQuery{DateTo: "tomorrow"}, "", "tomorrow"},
		{"bad status", shared.CommitQuery{Status: "done"}, "", "invalid status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, buf := setupApp(t)
			err := listCommits(context.Background(), a, tt.query, "", tt.kind)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, buf.String())
		})
	}
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.json")
	require.NoError(t, os.WriteFile(path, []byte(diffJSON), 0644))

	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", doc.Commit.Hash)
	assert.Len(t, doc.Files[0].Blocks[0].Lines, 3)

	require.NoError(t, os.WriteFile(path, []byte(`{"files":`), 0644))
	_, err = readDocument(path)
	assert.Error(t, err)

	_, err = readDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := parseID("12")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	for _, bad := range []string{"0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecords(t *testing.T) {
	a, backend, buf := setupApp(t)
	ctx := context.Background()

	require.NoError(t, createRecord(ctx, a, `{"name":"ana","team":"core"}`, ""))
	require.Len(t, backend.records, 1)
	var id uuid.UUID
	for k := range backend.records {
		id = k
	}
	assert.Contains(t, buf.String(), id.String())
	assert.Contains(t, buf.String(), `"name": "ana"`)

	require.NoError(t, updateRecord(ctx, a, id.String(), `{"team":"web"}`, "", true))
	assert.Equal(t, map[string]any{"name": "ana", "team": "web"}, backend.records[id].Data)

	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"bo"}`), 0644))
	require.NoError(t, updateRecord(ctx, a, id.String(), "", path, false))
	assert.Equal(t, map[string]any{"name": "bo"}, backend.records[id].Data)

	buf.Reset()
	require.NoError(t, listRecords(ctx, a, 20, 0))
	assert.Contains(t, buf.String(), id.String())
	assert.Contains(t, buf.String(), "1-1 of 1")

	assert.Equal(t, []string{http.MethodPost, http.MethodPatch, http.MethodPut}, backend.writes)
}

func TestRecords_RejectedBeforeSending(t *testing.T) {
	id := uuid.New().String()
	tests := []struct {
		name string
		run  func(ctx context.Context, a *app) error
		want string
	}{
		{"create malformed", func(ctx context.Context, a *app) error {
			return createRecord(ctx, a, `{"name":`, "")
		}, "invalid JSON format"},
		{"create array", func(ctx context.Context, a *app) error {
			return createRecord(ctx, a, `[1,2]`, "")
		}, "must be a JSON object"},
		{"create missing file", func(ctx context.Context, a *app) error {
			return createRecord(ctx, a, "", filepath.Join(t.TempDir(), "none.json"))
		}, "reading record data"},
		{"update bad id", func(ctx context.Context, a *app) error {
			return updateRecord(ctx, a, "42", `{}`, "", false)
		}, `invalid record id "42"`},
		{"update malformed", func(ctx context.Context, a *app) error {
			return updateRecord(ctx, a, id, `not json`, "", true)
		}, "invalid JSON format"},
		{"list limit", func(ctx context.Context, a *app) error {
			return listRecords(ctx, a, 101, 0)
		}, "invalid records page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, backend, _ := setupApp(t)
			err := tt.run(context.Background(), a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, backend.writes)
		})
	}
}

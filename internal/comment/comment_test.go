package comment

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"haven/internal/diff"
	"haven/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockBackend stores comments in memory the way the backend would.
type MockBackend struct {
	mu        sync.Mutex
	comments  []ReviewComment
	nextID    int
	createErr error
	listErr   error
	lists     int

	// when set, CreateComment blocks until released
	hold chan struct{}
}

func NewMockBackend(existing ...ReviewComment) *MockBackend {
	return &MockBackend{comments: existing, nextID: len(existing) + 1}
}

func (m *MockBackend) ListComments(ctx context.Context, commitID int) ([]ReviewComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []ReviewComment
	for _, c := range m.comments {
		if c.CommitID == commitID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockBackend) CreateComment(ctx context.Context, commitID int, d Draft) (*ReviewComment, error) {
	if m.hold != nil {
		<-m.hold
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	c := ReviewComment{
		ID:         m.nextID,
		CommitID:   commitID,
		ReviewerID: d.ReviewerID,
		FilePath:   d.FilePath,
		LineNumber: d.LineNumber,
		Content:    d.Content,
		CreatedAt:  time.Now(),
	}
	m.nextID++
	m.comments = append(m.comments, c)
	return &c, nil
}

func sampleComments() []ReviewComment {
	return []ReviewComment{
		{ID: 1, CommitID: 7, FilePath: "a.go", LineNumber: 3, Content: "first"},
		{ID: 2, CommitID: 7, FilePath: "b.go", LineNumber: 3, Content: "other file"},
		{ID: 3, CommitID: 7, FilePath: "a.go", LineNumber: 4, Content: "other line"},
		{ID: 4, CommitID: 7, FilePath: "a.go", LineNumber: 3, Content: "second"},
	}
}

func TestResolve(t *testing.T) {
	all := sampleComments()

	got := Resolve(all, "a.go", 3)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 4, got[1].ID)

	assert.Empty(t, Resolve(all, "a.go", 5))
	assert.Empty(t, Resolve(all, "A.go", 3))
	assert.Empty(t, Resolve(nil, "a.go", 3))
}

func TestIndex_MatchesResolve(t *testing.T) {
	all := sampleComments()
	idx := NewIndex(all)

	for _, path := range []string{"a.go", "b.go", "c.go"} {
		for line := 0; line < 6; line++ {
			assert.Equal(t, Resolve(all, path, line), idx.At(path, line), "%s:%d", path, line)
		}
	}
	assert.Equal(t, 3, idx.CountForFile("a.go"))
	assert.Equal(t, 0, Index{}.CountForFile("a.go"))
}

func TestDraft_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr []string
	}{
		{"valid", Draft{ReviewerID: 1, LineNumber: 2, FilePath: "a.go", Content: "  looks off  "}, nil},
		{"blank", Draft{ReviewerID: 1, LineNumber: 2, FilePath: "a.go", Content: " \n "}, []string{"content"}},
		{"too long", Draft{ReviewerID: 1, LineNumber: 2, FilePath: "a.go", Content: strings.Repeat("x", MaxContentLength+1)}, []string{"content"}},
		{"no anchor", Draft{ReviewerID: 1, Content: "hi"}, []string{"file_path", "line_number"}},
		{"no reviewer", Draft{LineNumber: 1, FilePath: "a.go", Content: "hi"}, []string{"reviewer_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			err := d.Normalize()
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "looks off", d.Content)
				return
			}
			require.Error(t, err)
			e, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrorTypeValidation, e.Type)
			fields := e.Details.(map[string]string)
			for _, f := range tt.wantErr {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestSession_ToggleRoundTrip(t *testing.T) {
	s := NewSession(7, NewMockBackend(), nil)
	k1 := diff.Key(0, 0, 1, diff.SideLeft)
	k2 := diff.Key(0, 0, 1, diff.SideRight)

	assert.True(t, s.Toggle(k1))
	assert.True(t, s.IsActive(k1))
	assert.False(t, s.IsActive(k2))

	assert.True(t, s.Toggle(k2))
	assert.False(t, s.Toggle(k2))
	assert.True(t, s.IsActive(k1))
	assert.False(t, s.IsActive(k2))

	assert.False(t, s.Toggle(k1))
	assert.False(t, s.IsActive(k1))
}

func TestSession_SaveRefetches(t *testing.T) {
	backend := NewMockBackend(sampleComments()...)
	s := NewSession(7, backend, nil)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	key := diff.Key(0, 0, 2, diff.SideNone)
	s.Toggle(key)

	err := s.Save(ctx, key, Draft{ReviewerID: 9, FilePath: "a.go", LineNumber: 3, Content: " third "})
	require.NoError(t, err)

	assert.False(t, s.IsActive(key))
	assert.NoError(t, s.Failure(key))
	at := s.Index().At("a.go", 3)
	require.Len(t, at, 3)
	assert.Equal(t, "third", at[2].Content)
	assert.Equal(t, 5, at[2].ID)
	assert.Equal(t, 2, backend.lists)
}

func TestSession_SaveFailureKeepsComposer(t *testing.T) {
	backend := NewMockBackend()
	backend.createErr = errors.Upstream(500, "db locked")
	s := NewSession(7, backend, nil)
	key := diff.Key(1, 0, 0, diff.SideRight)
	s.Toggle(key)

	err := s.Save(context.Background(), key, Draft{ReviewerID: 1, FilePath: "a.go", LineNumber: 1, Content: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeUpstream))

	assert.True(t, s.IsActive(key))
	assert.ErrorContains(t, s.Failure(key), "db locked")
	assert.Empty(t, s.Index().At("a.go", 1))
	assert.Equal(t, 0, backend.lists)
	assert.NoError(t, s.Failure(diff.Key(1, 0, 1, diff.SideRight)))

	// closing the composer clears its error
	s.Toggle(key)
	s.Toggle(key)
	assert.NoError(t, s.Failure(key))
}

func TestSession_SaveInvalidDraft(t *testing.T) {
	s := NewSession(7, NewMockBackend(), nil)
	key := diff.Key(0, 0, 0, diff.SideNone)
	s.Toggle(key)

	err := s.Save(context.Background(), key, Draft{ReviewerID: 1, FilePath: "a.go", LineNumber: 1, Content: "   "})
	require.Error(t, err)
	assert.True(t, s.IsActive(key))
	assert.Error(t, s.Failure(key))
}

func TestSession_SaveWithoutComposer(t *testing.T) {
	s := NewSession(7, NewMockBackend(), nil)
	err := s.Save(context.Background(), "f0:b0:l0", Draft{ReviewerID: 1, FilePath: "a.go", LineNumber: 1, Content: "x"})
	assert.Error(t, err)
}

func TestSession_RefreshFailure(t *testing.T) {
	backend := NewMockBackend(sampleComments()...)
	s := NewSession(7, backend, nil)
	require.NoError(t, s.Refresh(context.Background()))

	backend.listErr = fmt.Errorf("connection refused")
	require.Error(t, s.Refresh(context.Background()))
	assert.Error(t, s.Err())
	// the previous list survives a failed refresh
	assert.Len(t, s.Comments(), 4)
}

func TestSession_DropsResultsAfterClose(t *testing.T) {
	backend := NewMockBackend()
	backend.hold = make(chan struct{})
	s := NewSession(7, backend, nil)
	key := diff.Key(0, 0, 0, diff.SideNone)
	s.Toggle(key)

	done := make(chan error, 1)
	go func() {
		done <- s.Save(context.Background(), key, Draft{ReviewerID: 1, FilePath: "a.go", LineNumber: 1, Content: "late"})
	}()

	s.Close()
	close(backend.hold)

	err := <-done
	assert.True(t, stderrors.Is(err, ErrClosed))
	// state untouched by the late completion
	assert.True(t, s.IsActive(key))
	assert.Empty(t, s.Comments())
	assert.Equal(t, 0, backend.lists)

	assert.ErrorIs(t, s.Refresh(context.Background()), ErrClosed)
}

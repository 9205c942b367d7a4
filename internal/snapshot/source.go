package snapshot

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/errors"
	"haven/internal/search"
	"haven/shared/types"

	"go.uber.org/zap"
)

// ErrOffline is returned for writes attempted in offline mode.
var ErrOffline = stderrors.New("offline: writes need the backend")

// Backend is the part of the REST client a Source reads through.
type Backend interface {
	GetDiffJSON(ctx context.Context, commitID int) (*diff.Document, error)
	ListCommits(ctx context.Context, q shared.CommitQuery) (*shared.Page[shared.CommitWithReview], error)
	comment.Backend
}

// Freshness says where a result came from.
type Freshness struct {
	Stale     bool
	FetchedAt time.Time
}

// Source serves documents and comments from the backend, storing every
// successful answer. When the backend is unreachable or failing it falls
// back to the stored copy and marks the result stale. In offline mode the
// backend is never called.
type Source struct {
	backend Backend
	store   *Store
	offline bool
	logger  *zap.Logger
}

func NewSource(backend Backend, store *Store, offline bool, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{backend: backend, store: store, offline: offline, logger: logger}
}

func (s *Source) Document(ctx context.Context, commitID int) (*diff.Document, Freshness, error) {
	if !s.offline {
		doc, err := s.backend.GetDiffJSON(ctx, commitID)
		if err == nil {
			if err := s.store.PutDocument(commitID, *doc); err != nil {
				s.logger.Warn("caching diff failed", zap.Int("commit_id", commitID), zap.Error(err))
			}
			return doc, Freshness{FetchedAt: time.Now()}, nil
		}
		if !errors.Transient(err) {
			return nil, Freshness{}, err
		}
		s.logger.Warn("backend failed, serving stored diff",
			zap.Int("commit_id", commitID),
			zap.Error(err),
		)
	}

	snap, err := s.store.Document(commitID)
	if err != nil {
		if isNotFound(err) {
			return nil, Freshness{}, errors.NotFound(fmt.Sprintf("no offline copy of commit %d", commitID))
		}
		return nil, Freshness{}, err
	}
	return &snap.Document, Freshness{Stale: true, FetchedAt: snap.FetchedAt}, nil
}

func (s *Source) Comments(ctx context.Context, commitID int) ([]comment.ReviewComment, Freshness, error) {
	if !s.offline {
		list, err := s.backend.ListComments(ctx, commitID)
		if err == nil {
			if err := s.store.PutComments(commitID, list); err != nil {
				s.logger.Warn("caching comments failed", zap.Int("commit_id", commitID), zap.Error(err))
			}
			return list, Freshness{FetchedAt: time.Now()}, nil
		}
		if !errors.Transient(err) {
			return nil, Freshness{}, err
		}
		s.logger.Warn("backend failed, serving stored comments",
			zap.Int("commit_id", commitID),
			zap.Error(err),
		)
	}

	snap, err := s.store.Comments(commitID)
	if err != nil {
		if isNotFound(err) {
			// no stored list reads as no comments
			return nil, Freshness{Stale: true}, nil
		}
		return nil, Freshness{}, err
	}
	return snap.Comments, Freshness{Stale: true, FetchedAt: snap.FetchedAt}, nil
}

// Commits lists commits from the backend, recording every row it sees.
// Offline, or when the backend fails, the stored rows are filtered and
// paged locally with the same query.
func (s *Source) Commits(ctx context.Context, q shared.CommitQuery) (*shared.Page[shared.CommitWithReview], Freshness, error) {
	if !s.offline {
		page, err := s.backend.ListCommits(ctx, q)
		if err == nil {
			if err := s.store.PutCommits(page.Items); err != nil {
				s.logger.Warn("caching commits failed", zap.Error(err))
			}
			return page, Freshness{FetchedAt: time.Now()}, nil
		}
		if !errors.Transient(err) {
			return nil, Freshness{}, err
		}
		if _, ferr := search.FromQuery(q); ferr != nil {
			return nil, Freshness{}, err
		}
		s.logger.Warn("backend failed, listing stored commits", zap.Error(err))
	}

	filter, err := search.FromQuery(q)
	if err != nil {
		return nil, Freshness{}, errors.ValidationError(err.Error(), nil)
	}
	stored, err := s.store.Commits()
	if err != nil {
		return nil, Freshness{}, err
	}

	var (
		items  []shared.CommitWithReview
		oldest time.Time
	)
	for _, c := range stored {
		if !filter.Match(c.Commit) {
			continue
		}
		items = append(items, c.Commit)
		if oldest.IsZero() || c.FetchedAt.Before(oldest) {
			oldest = c.FetchedAt
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CommittedAt.Equal(items[j].CommittedAt) {
			return items[i].CommittedAt.After(items[j].CommittedAt)
		}
		return items[i].ID > items[j].ID
	})

	page := paginate(items, q.Page, q.PageSize)
	return &page, Freshness{Stale: true, FetchedAt: oldest}, nil
}

func paginate(items []shared.CommitWithReview, page, size int) shared.Page[shared.CommitWithReview] {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	total := len(items)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	return shared.Page[shared.CommitWithReview]{
		Items:      append([]shared.CommitWithReview{}, items[start:end]...),
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}
}

// ListComments lets a Source back a comment.Session.
func (s *Source) ListComments(ctx context.Context, commitID int) ([]comment.ReviewComment, error) {
	list, _, err := s.Comments(ctx, commitID)
	return list, err
}

func (s *Source) CreateComment(ctx context.Context, commitID int, d comment.Draft) (*comment.ReviewComment, error) {
	if s.offline {
		return nil, ErrOffline
	}
	return s.backend.CreateComment(ctx, commitID, d)
}

func isNotFound(err error) bool {
	return errors.Is(err, errors.ErrorTypeNotFound)
}

var _ comment.Backend = (*Source)(nil)

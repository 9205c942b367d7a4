package comment

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"haven/internal/diff"

	"go.uber.org/zap"
)

// ErrClosed is returned by operations whose result arrived after the
// session was closed. The result is discarded; callers may ignore it.
var ErrClosed = stderrors.New("review session closed")

// Backend is the part of the REST client a session needs.
type Backend interface {
	ListComments(ctx context.Context, commitID int) ([]ReviewComment, error)
	CreateComment(ctx context.Context, commitID int, d Draft) (*ReviewComment, error)
}

// Session owns the review state of one diff view: the set of open
// composers and the fetched comment list. It belongs to exactly one view
// and is discarded with it. Backend calls run without the lock held; a
// generation counter drops any result that lands after Close.
type Session struct {
	commitID int
	backend  Backend
	logger   *zap.Logger

	mu       sync.Mutex
	active   map[diff.LineKey]struct{}
	failures map[diff.LineKey]error
	comments []ReviewComment
	index    Index
	loadErr  error
	gen      uint64
	closed   bool
}

func NewSession(commitID int, backend Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		commitID: commitID,
		backend:  backend,
		logger:   logger.With(zap.Int("commit_id", commitID)),
		active:   make(map[diff.LineKey]struct{}),
		failures: make(map[diff.LineKey]error),
	}
}

// Toggle opens the composer at key if it is closed and closes it
// otherwise. It returns whether the composer is now open.
func (s *Session) Toggle(key diff.LineKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[key]; ok {
		delete(s.active, key)
		delete(s.failures, key)
		return false
	}
	s.active[key] = struct{}{}
	return true
}

func (s *Session) IsActive(key diff.LineKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

// Comments returns the last fetched list.
func (s *Session) Comments() []ReviewComment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReviewComment(nil), s.comments...)
}

// Index returns the lookup over the last fetched list.
func (s *Session) Index() Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Err is the error of the last failed refresh, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Failure is the error of the last failed save at key, if its composer
// is still open.
func (s *Session) Failure(key diff.LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[key]
}

// Refresh replaces the comment list with the backend's.
func (s *Session) Refresh(ctx context.Context) error {
	gen, err := s.generation()
	if err != nil {
		return err
	}

	comments, err := s.backend.ListComments(ctx, s.commitID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		s.logger.Debug("dropping comment list fetched after close")
		return ErrClosed
	}
	if err != nil {
		s.loadErr = err
		return fmt.Errorf("loading comments: %w", err)
	}
	s.loadErr = nil
	s.comments = comments
	s.index = NewIndex(comments)
	return nil
}

// Save posts the draft written in the composer at key. On success the
// composer closes and the list is fetched again, so the new comment only
// appears once the backend has assigned its id and timestamp. On failure
// the composer stays open and the error is kept for Failure.
func (s *Session) Save(ctx context.Context, key diff.LineKey, d Draft) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.active[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("no composer open at %s", key)
	}
	gen := s.gen
	s.mu.Unlock()

	if err := d.Normalize(); err != nil {
		s.fail(gen, key, err)
		return err
	}

	created, err := s.backend.CreateComment(ctx, s.commitID, d)
	if err != nil {
		if !s.fail(gen, key, err) {
			return ErrClosed
		}
		s.logger.Warn("saving comment failed",
			zap.String("key", string(key)),
			zap.Error(err),
		)
		return fmt.Errorf("saving comment: %w", err)
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return ErrClosed
	}
	delete(s.active, key)
	delete(s.failures, key)
	s.mu.Unlock()

	s.logger.Info("comment saved",
		zap.Int("comment_id", created.ID),
		zap.String("file", d.FilePath),
		zap.Int("line", d.LineNumber),
	)

	return s.Refresh(ctx)
}

// Close ends the session. Results of calls still in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
}

func (s *Session) generation() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.gen, nil
}

// fail records err for key unless the session moved on. It reports
// whether the error was recorded.
func (s *Session) fail(gen uint64, key diff.LineKey, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		return false
	}
	s.failures[key] = err
	return true
}

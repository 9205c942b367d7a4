// Package snapshot keeps a local read-through copy of diff documents,
// comment lists and listed commits so a view can still be shown when the
// backend is down.
// The backend stays the source of truth; nothing here is written back.
package snapshot

import (
	"fmt"
	"strconv"
	"time"

	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/storage"
	"haven/shared/types"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	documentPrefix = "diff"
	commentPrefix  = "comments"
	commitPrefix   = "commits"
)

// Document is a stored diff-json payload.
type Document struct {
	CommitID  int           `json:"commit_id"`
	Document  diff.Document `json:"document"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func (d *Document) GetID() string { return strconv.Itoa(d.CommitID) }

// Comments is a stored comment list.
type Comments struct {
	CommitID  int                     `json:"commit_id"`
	Comments  []comment.ReviewComment `json:"comments"`
	FetchedAt time.Time               `json:"fetched_at"`
}

func (c *Comments) GetID() string { return strconv.Itoa(c.CommitID) }

// Commit is a commit row as last seen in a listing.
type Commit struct {
	Commit    shared.CommitWithReview `json:"commit"`
	FetchedAt time.Time               `json:"fetched_at"`
}

func (c *Commit) GetID() string { return strconv.Itoa(c.Commit.ID) }

type Options struct {
	CacheSize       int
	CompressMinSize int
}

// Store persists snapshots in badger behind an in-memory LRU of
// documents.
type Store struct {
	documents *storage.BadgerStore
	comments  *storage.BadgerStore
	commits   *storage.BadgerStore
	hot       *lru.Cache[int, *Document]
	now       func() time.Time
}

func New(db *badger.DB, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	codec, err := storage.NewCodec(opts.CompressMinSize)
	if err != nil {
		return nil, err
	}
	hot, err := lru.New[int, *Document](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Store{
		documents: storage.NewBadgerStore(db, documentPrefix, codec),
		comments:  storage.NewBadgerStore(db, commentPrefix, codec),
		commits:   storage.NewBadgerStore(db, commitPrefix, codec),
		hot:       hot,
		now:       time.Now,
	}, nil
}

func (s *Store) PutDocument(commitID int, doc diff.Document) error {
	snap := &Document{CommitID: commitID, Document: doc, FetchedAt: s.now()}
	if err := s.documents.Put(snap); err != nil {
		return fmt.Errorf("storing diff snapshot: %w", err)
	}
	s.hot.Add(commitID, snap)
	return nil
}

// Document returns the stored diff for commitID, or a NOT_FOUND error.
func (s *Store) Document(commitID int) (*Document, error) {
	if snap, ok := s.hot.Get(commitID); ok {
		return snap, nil
	}
	var snap Document
	if err := s.documents.Get(strconv.Itoa(commitID), &snap); err != nil {
		return nil, err
	}
	s.hot.Add(commitID, &snap)
	return &snap, nil
}

func (s *Store) PutComments(commitID int, list []comment.ReviewComment) error {
	snap := &Comments{CommitID: commitID, Comments: list, FetchedAt: s.now()}
	if err := s.comments.Put(snap); err != nil {
		return fmt.Errorf("storing comment snapshot: %w", err)
	}
	return nil
}

func (s *Store) Comments(commitID int) (*Comments, error) {
	var snap Comments
	if err := s.comments.Get(strconv.Itoa(commitID), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// PutCommits records every row of a listing, replacing older copies.
func (s *Store) PutCommits(list []shared.CommitWithReview) error {
	now := s.now()
	for _, c := range list {
		if err := s.commits.Put(&Commit{Commit: c, FetchedAt: now}); err != nil {
			return fmt.Errorf("storing commit %d: %w", c.ID, err)
		}
	}
	return nil
}

// Commits lists every stored commit row.
func (s *Store) Commits() ([]Commit, error) {
	var out []Commit
	if err := s.commits.List(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Documents lists every stored diff snapshot.
func (s *Store) Documents() ([]Document, error) {
	var out []Document
	if err := s.documents.List(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Purge drops everything stored for commitID. Missing entries are not an
// error.
func (s *Store) Purge(commitID int) error {
	s.hot.Remove(commitID)
	id := strconv.Itoa(commitID)
	for _, st := range []*storage.BadgerStore{s.documents, s.comments} {
		if err := st.Delete(id); err != nil && !isNotFound(err) {
			return err
		}
	}
	return nil
}

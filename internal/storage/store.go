package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidID reports a caller-supplied conversation id that is not safe to
// use as a file name.
var ErrInvalidID = errors.New("invalid conversation id")

// Conversation ids become file names, so they are restricted to a charset
// that cannot traverse out of the data directory. UUIDs always pass.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,200}$`)

// Store is a file-backed conversation store. Each conversation lives in
// <dir>/<id>.json; concurrent appends to the same id are serialized by a
// per-id mutex, and every save goes through a temp file plus rename so a
// reader never sees a torn record and a crashed write leaves the previous
// state intact.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// lockFor returns the mutex serializing writes for one conversation id.
func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// path returns the file path for a conversation id.
func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create initializes a new empty conversation. If id is empty a fresh UUID
// is generated; a supplied id must match the safe charset. Returns the
// created conversation.
func (s *Store) Create(id string) (*Conversation, error) {
	if id == "" {
		id = uuid.New().String()
	} else if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	conversation := &Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Title:     "New Conversation",
		Turns:     []Turn{},
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.save(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// Get loads a conversation by id. Returns nil without error if it does not
// exist. Ids outside the safe charset never resolve to a file.
func (s *Store) Get(id string) (*Conversation, error) {
	if !idPattern.MatchString(id) {
		return nil, nil
	}

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conversation Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse conversation JSON: %w", err)
	}

	return &conversation, nil
}

// AppendTurn appends a turn to a conversation, assigning the next turn
// index. The load-append-save sequence holds the per-id lock so overlapping
// requests cannot corrupt turn ordering.
func (s *Store) AppendTurn(id string, turn Turn) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := s.Get(id)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", id)
	}

	turn.Index = len(conversation.Turns)
	conversation.Turns = append(conversation.Turns, turn)

	return s.save(conversation)
}

// UpdateTitle sets a conversation's title.
func (s *Store) UpdateTitle(id string, title string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := s.Get(id)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", id)
	}

	conversation.Title = title
	return s.save(conversation)
}

// List returns metadata for every conversation, newest first. Unreadable or
// invalid files are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	// Empty slice rather than nil so the JSON listing is [] not null.
	conversations := make([]Metadata, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}

		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}

		conversations = append(conversations, Metadata{
			ID:        conv.ID,
			CreatedAt: conv.CreatedAt,
			Title:     conv.Title,
			TurnCount: len(conv.Turns),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})

	return conversations, nil
}

// save writes a conversation atomically: marshal, write to a temp file in
// the same directory, rename over the target.
func (s *Store) save(conversation *Conversation) error {
	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, conversation.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(conversation.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}

	return nil
}

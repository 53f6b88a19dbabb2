package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhth/agx/internal/storage"
	"github.com/dhth/agx/pkg/types"
)

const sessionNameFormat = "2006-01-02-15-04-05"

// Snapshot is the document written after each turn.
type Snapshot struct {
	Session string          `json:"session"`
	Turn    int             `json:"turn"`
	SavedAt time.Time       `json:"saved_at"`
	Tokens  int             `json:"tokens,omitempty"`
	History []types.Message `json:"history"`
}

// Transcript writes per-turn history snapshots for one conversation.
type Transcript struct {
	storage *storage.Storage
	session string
	turn    int
}

// NewTranscript starts a conversation under chatsDir named after now.
func NewTranscript(chatsDir string, now time.Time) *Transcript {
	return &Transcript{
		storage: storage.New(chatsDir),
		session: now.Format(sessionNameFormat),
	}
}

// Session returns the name of the conversation's directory.
func (t *Transcript) Session() string {
	return t.session
}

// Rotate starts a new conversation.
func (t *Transcript) Rotate(now time.Time) {
	t.session = now.Format(sessionNameFormat)
	t.turn = 0
}

// Save writes the next turn snapshot.
func (t *Transcript) Save(ctx context.Context, history []types.Message, tokens int) error {
	t.turn++
	snap := Snapshot{
		Session: t.session,
		Turn:    t.turn,
		SavedAt: time.Now().UTC(),
		Tokens:  tokens,
		History: history,
	}
	if err := t.storage.Put(ctx, []string{t.session, turnKey(t.turn)}, snap); err != nil {
		return fmt.Errorf("couldn't save chat: %w", err)
	}
	return nil
}

func turnKey(turn int) string {
	return fmt.Sprintf("turn-%03d", turn)
}

// ListSessions returns the conversations recorded under chatsDir, oldest first.
func ListSessions(ctx context.Context, chatsDir string) ([]string, error) {
	return storage.New(chatsDir).List(ctx, nil)
}

// LatestSnapshot loads the last turn snapshot of a conversation.
func LatestSnapshot(ctx context.Context, chatsDir, session string) (*Snapshot, error) {
	s := storage.New(chatsDir)
	turns, err := s.List(ctx, []string{session})
	if err != nil {
		return nil, err
	}

	var latest string
	for _, name := range turns {
		if strings.HasPrefix(name, "turn-") {
			latest = name
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("no turns recorded for chat %q", session)
	}

	var snap Snapshot
	if err := s.Get(ctx, []string{session, latest}, &snap); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no turns recorded for chat %q", session)
		}
		return nil, err
	}
	return &snap, nil
}

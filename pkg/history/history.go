// Package history records finished narration turns locally so past
// assistant utterances can be reviewed and replayed.
//
// Turns are msgpack-encoded and stored in a kv.Store keyed by start time,
// so listing in key order is listing in chronological order.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/edudashpro/orbvoice/pkg/kv"
)

// keyPrefix namespaces turn records within the store.
const keyPrefix = "turn:"

// Turn is one recorded narration turn.
type Turn struct {
	// ID is the unique turn identifier.
	ID string `msgpack:"id" json:"id"`

	// StartedAt is when the stream started.
	StartedAt time.Time `msgpack:"started_at" json:"started_at"`

	// Prompt is the user text that triggered the turn.
	Prompt string `msgpack:"prompt" json:"prompt"`

	// Text is the full accumulated assistant response.
	Text string `msgpack:"text" json:"text"`

	// Sentences are the response sentences in emission order.
	Sentences []string `msgpack:"sentences" json:"sentences"`

	// Canceled marks turns that were cut off before completion.
	Canceled bool `msgpack:"canceled" json:"canceled"`
}

// Log records and retrieves turns.
type Log struct {
	store kv.Store
}

// New creates a Log over the given store.
func New(store kv.Store) *Log {
	return &Log{store: store}
}

// Append stores a turn. A missing ID or start time is filled in.
func (l *Log) Append(ctx context.Context, turn Turn) (Turn, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.StartedAt.IsZero() {
		turn.StartedAt = time.Now()
	}
	data, err := msgpack.Marshal(turn)
	if err != nil {
		return Turn{}, fmt.Errorf("encode turn: %w", err)
	}
	if err := l.store.Set(ctx, turnKey(turn.StartedAt, turn.ID), data); err != nil {
		return Turn{}, fmt.Errorf("store turn: %w", err)
	}
	return turn, nil
}

// Get returns the turn with the given ID.
func (l *Log) Get(ctx context.Context, id string) (Turn, error) {
	for entry, err := range l.store.List(ctx, keyPrefix) {
		if err != nil {
			return Turn{}, err
		}
		var turn Turn
		if err := msgpack.Unmarshal(entry.Value, &turn); err != nil {
			return Turn{}, fmt.Errorf("decode turn %s: %w", entry.Key, err)
		}
		if turn.ID == id {
			return turn, nil
		}
	}
	return Turn{}, fmt.Errorf("history: turn %s: %w", id, kv.ErrNotFound)
}

// List returns up to limit turns, newest first. A non-positive limit
// returns all turns.
func (l *Log) List(ctx context.Context, limit int) ([]Turn, error) {
	var turns []Turn
	for entry, err := range l.store.List(ctx, keyPrefix) {
		if err != nil {
			return nil, err
		}
		var turn Turn
		if err := msgpack.Unmarshal(entry.Value, &turn); err != nil {
			return nil, fmt.Errorf("decode turn %s: %w", entry.Key, err)
		}
		turns = append(turns, turn)
	}
	// Keys are time-ordered oldest first; callers want newest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

// Delete removes the turn with the given ID. Missing turns are not an
// error.
func (l *Log) Delete(ctx context.Context, id string) error {
	for entry, err := range l.store.List(ctx, keyPrefix) {
		if err != nil {
			return err
		}
		var turn Turn
		if err := msgpack.Unmarshal(entry.Value, &turn); err != nil {
			continue
		}
		if turn.ID == id {
			return l.store.Delete(ctx, entry.Key)
		}
	}
	return nil
}

// turnKey builds the time-ordered store key for a turn. The ID suffix
// disambiguates turns that start in the same nanosecond.
func turnKey(at time.Time, id string) string {
	return fmt.Sprintf("%s%020d:%s", keyPrefix, at.UnixNano(), id)
}

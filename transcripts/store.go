package transcripts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"
)

type (
	// Store manages the transcript collection held in one Slot.
	//
	// Every operation is a read-modify-write of the whole slot. Callers are
	// expected to be serialized; concurrent writers race and the last one wins.
	Store struct {
		slot Slot
		now  func() time.Time
		log  *slog.Logger
	}

	// Option configures a Store.
	Option func(*Store)
)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used for swallowed read failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore returns a Store backed by slot.
func NewStore(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot: slot,
		now:  time.Now,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save creates a new record and persists it in front of the existing ones.
// When the returned error is non-nil the record was not retained.
func (s *Store) Save(ctx context.Context, transcript string, summary *string, duration *float64) (Transcript, error) {
	existing := s.List(ctx)
	now := s.now().UTC()

	t := Transcript{
		ID:         nextID(now, existing),
		Transcript: transcript,
		Summary:    summary,
		CreatedAt:  now,
		Duration:   duration,
	}

	updated := make([]Transcript, 0, len(existing)+1)
	updated = append(updated, t)
	updated = append(updated, existing...)

	if err := s.write(ctx, updated); err != nil {
		return Transcript{}, fmt.Errorf("saving transcript: %w", err)
	}

	return t, nil
}

// List returns all records, newest first. Missing, unreadable or corrupt
// contents yield an empty list; the cause is only logged.
func (s *Store) List(ctx context.Context) []Transcript {
	data, ok, err := s.slot.Read(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "loading transcripts", "err", fmt.Errorf("%w: %w", ErrStorageRead, err))
		return []Transcript{}
	}
	if !ok || len(data) == 0 {
		return []Transcript{}
	}

	list, err := decodeCollection(data)
	if err != nil {
		s.log.WarnContext(ctx, "loading transcripts", "err", err)
		return []Transcript{}
	}

	sortNewestFirst(list)
	return list
}

// Get looks up a record by id.
func (s *Store) Get(ctx context.Context, id string) (Transcript, bool) {
	for _, t := range s.List(ctx) {
		if t.ID == id {
			return t, true
		}
	}
	return Transcript{}, false
}

// Delete removes the record with id. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	list := s.List(ctx)

	filtered := make([]Transcript, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			filtered = append(filtered, t)
		}
	}

	if err := s.write(ctx, filtered); err != nil {
		return fmt.Errorf("deleting transcript %s: %w", id, err)
	}
	return nil
}

// Clear drops the whole collection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.slot.Remove(ctx); err != nil {
		return fmt.Errorf("clearing transcripts: %w: %w", ErrStorageWrite, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, list []Transcript) error {
	data, err := encodeCollection(list)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if err := s.slot.Write(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

func decodeCollection(data []byte) ([]Transcript, error) {
	var list []Transcript
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding collection: %w", ErrStorageRead, err)
	}
	if list == nil {
		list = []Transcript{}
	}
	return list, nil
}

func encodeCollection(list []Transcript) ([]byte, error) {
	if list == nil {
		list = []Transcript{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encoding collection: %w", err)
	}
	return data, nil
}

// sortNewestFirst orders by CreatedAt descending. Equal timestamps fall back
// to the numerically larger id, which is the later insert.
func sortNewestFirst(list []Transcript) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return idLess(b.ID, a.ID)
	})
}

func idLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// nextID derives an id from the epoch milliseconds of now, bumped past any
// id already taken.
func nextID(now time.Time, existing []Transcript) string {
	taken := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		taken[t.ID] = struct{}{}
	}

	ms := now.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		ms++
	}
}

package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

const (
	DefaultDir   = "./wal/events"
	segmentLimit = 1000
	maxSegments  = 100

	eventKeyPrefix = "event_"
)

// Filter narrows event queries. Zero values match everything.
type Filter struct {
	Type  domain.EventType
	Limit int
}

func (f Filter) match(event domain.LogEvent) bool {
	return f.Type == "" || event.Type == f.Type
}

// WALStore is an append-only event log keyed by event date and timestamp.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// NewWALStore initializes a WAL-backed event log.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "events_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init event WAL")
	}

	return &WALStore{wal: wal, now: time.Now}, nil
}

// Append writes the event and returns its index. A zero timestamp is set to now.
func (s *WALStore) Append(event domain.LogEvent) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("event store is not initialized")
	}
	if !event.Type.Valid() {
		return 0, fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, errors.Wrap(err, "marshal event")
	}

	key := eventKey(event)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return 0, errors.Wrapf(err, "write event %s", key)
	}
	return nextIndex, nil
}

// EventsByDate returns events of one calendar date (YYYY-MM-DD), oldest first.
func (s *WALStore) EventsByDate(date string, filter Filter) ([]domain.LogEvent, error) {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, errors.Wrapf(err, "invalid date %q", date)
	}

	prefix := eventKeyPrefix + date + "_"
	records, err := s.scan(func(key string) bool { return strings.HasPrefix(key, prefix) }, filter, false)
	if err != nil {
		return nil, err
	}
	return unwrap(records), nil
}

// Recent returns the newest events first.
func (s *WALStore) Recent(filter Filter) ([]domain.LogEvent, error) {
	records, err := s.scan(nil, filter, true)
	if err != nil {
		return nil, err
	}
	return unwrap(records), nil
}

// Since returns events not older than from, newest first.
func (s *WALStore) Since(from time.Time, filter Filter) ([]domain.LogEvent, error) {
	records, err := s.scan(nil, Filter{Type: filter.Type}, true)
	if err != nil {
		return nil, err
	}

	result := make([]domain.LogEvent, 0, len(records))
	for _, r := range records {
		if r.Event.Timestamp.Before(from) {
			break
		}
		result = append(result, r.Event)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// EventsAfter returns all events written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.LogEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("event store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.LogEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		record, ok, err := s.get(idx, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("event store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func (s *WALStore) scan(keep func(key string) bool, filter Filter, newestFirst bool) ([]domain.LogEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("event store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	records := make([]domain.LogEventRecord, 0)

	visit := func(idx uint64) (bool, error) {
		record, ok, err := s.get(idx, keep)
		if err != nil || !ok || !filter.match(record.Event) {
			return false, err
		}
		records = append(records, record)
		return filter.Limit > 0 && len(records) == filter.Limit, nil
	}

	if newestFirst {
		for idx := current; idx >= 1; idx-- {
			done, err := visit(idx)
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
		}
		return records, nil
	}

	for idx := uint64(1); idx <= current; idx++ {
		done, err := visit(idx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return records, nil
}

// get must be called with mu held. Records missing from rotated segments are skipped.
func (s *WALStore) get(idx uint64, keep func(key string) bool) (domain.LogEventRecord, bool, error) {
	key, payload, err := s.wal.Get(idx)
	if err != nil || !strings.HasPrefix(key, eventKeyPrefix) {
		return domain.LogEventRecord{}, false, nil
	}
	if keep != nil && !keep(key) {
		return domain.LogEventRecord{}, false, nil
	}

	var event domain.LogEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.LogEventRecord{}, false, errors.Wrapf(err, "decode event %s", key)
	}

	return domain.LogEventRecord{Index: idx, Event: event}, true, nil
}

func eventKey(event domain.LogEvent) string {
	return fmt.Sprintf("%s%s_%s", eventKeyPrefix, event.EventDate(), event.Timestamp.UTC().Format(time.RFC3339Nano))
}

func unwrap(records []domain.LogEventRecord) []domain.LogEvent {
	result := make([]domain.LogEvent, len(records))
	for i, r := range records {
		result[i] = r.Event
	}
	return result
}

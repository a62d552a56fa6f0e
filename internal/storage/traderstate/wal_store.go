package traderstate

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

const (
	DefaultDir   = "./wal/state"
	segmentLimit = 1000
	maxSegments  = 100

	stateKeyPrefix  = "trader_state_"
	intentKeyPrefix = "trade_intent_"
)

// WALStore persists trader snapshots and trade intents in a WAL.
// The last record written for a key wins on replay.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex

	states      map[string]domain.TraderState
	intents     map[string]domain.TradeIntent
	intentOrder []string
}

// NewWALStore opens the WAL in dir and replays it.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "state_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trader state WAL")
	}

	s := &WALStore{
		wal:     wal,
		states:  make(map[string]domain.TraderState),
		intents: make(map[string]domain.TradeIntent),
	}
	if err := s.replay(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	return s, nil
}

func (s *WALStore) replay() error {
	for msg := range s.wal.Iterator() {
		switch {
		case strings.HasPrefix(msg.Key, stateKeyPrefix):
			var state domain.TraderState
			if err := json.Unmarshal(msg.Value, &state); err != nil {
				return errors.Wrapf(err, "decode trader state %s", msg.Key)
			}
			s.states[state.TraderID] = state
		case strings.HasPrefix(msg.Key, intentKeyPrefix):
			var intent domain.TradeIntent
			if err := json.Unmarshal(msg.Value, &intent); err != nil {
				return errors.Wrapf(err, "decode trade intent %s", msg.Key)
			}
			s.remember(intent)
		}
	}
	return nil
}

// Load returns the latest snapshot for traderID, or nil if none was saved.
func (s *WALStore) Load(traderID string) (*domain.TraderState, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trader state store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[traderID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save appends a snapshot.
func (s *WALStore) Save(state domain.TraderState) error {
	if s == nil || s.wal == nil {
		return errors.New("trader state store is not initialized")
	}
	if state.TraderID == "" {
		return fmt.Errorf("trader id is required")
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal trader state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(stateKeyPrefix+state.TraderID, payload); err != nil {
		return err
	}
	s.states[state.TraderID] = state
	return nil
}

// SaveIntent appends a new version of a trade intent.
func (s *WALStore) SaveIntent(intent domain.TradeIntent) error {
	if s == nil || s.wal == nil {
		return errors.New("trader state store is not initialized")
	}
	if intent.ID == "" {
		return fmt.Errorf("trade intent id is required")
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "marshal trade intent")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(intentKeyPrefix+intent.ID, payload); err != nil {
		return err
	}
	s.remember(intent)
	return nil
}

// Intents returns the latest version of every intent in creation order.
func (s *WALStore) Intents() []domain.TradeIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TradeIntent, 0, len(s.intentOrder))
	for _, id := range s.intentOrder {
		result = append(result, s.intents[id])
	}
	return result
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trader state store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func (s *WALStore) write(key string, payload []byte) error {
	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrapf(s.wal.Write(nextIndex, key, payload), "write %s", key)
}

func (s *WALStore) remember(intent domain.TradeIntent) {
	if _, seen := s.intents[intent.ID]; !seen {
		s.intentOrder = append(s.intentOrder, intent.ID)
	}
	s.intents[intent.ID] = intent
}

package store

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/codec"
)

// Namespace is the reserved key prefix for obfuscated entries managed by
// this layer. Host-application keys outside this prefix are left alone,
// except that the expiry sweep will purge any value that turns out to be
// wrapper-shaped and stale.
const Namespace = "sv_"

// metaCounterKey persists the write counter used for backup rollback
// detection. It lives outside the namespace so the integrity sweep does not
// treat it as a corrupted entry.
const metaCounterKey = "svm_counter"

// entry is the persisted wrapper around every payload.
type entry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt int64           `json:"stored_at"` // unix milliseconds
	Checksum string          `json:"checksum"`
}

// Store wraps a Backend with per-entry checksums, expiry, and obfuscation.
// Read failures are self-healing: a corrupted or stale entry is deleted and
// reported as absent, never as an error.
type Store struct {
	backend Backend
	codec   *codec.Codec
	clk     clock.Clock
	expiry  time.Duration

	mu      sync.Mutex
	counter int64
}

// New creates a Store over backend. expiry bounds how long an entry may be
// served after it was written.
func New(backend Backend, cdc *codec.Codec, clk clock.Clock, expiry time.Duration) *Store {
	s := &Store{
		backend: backend,
		codec:   cdc,
		clk:     clk,
		expiry:  expiry,
	}
	s.counter = s.loadCounter()
	return s
}

// Put stores payload under key. Returns false on serialization or backend
// failure; a failed put never leaves a partial write behind.
func (s *Store) Put(key string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to serialize payload")
		return false
	}

	e := entry{
		Payload:  raw,
		StoredAt: s.clk.Now().UnixMilli(),
		Checksum: checksum(raw),
	}
	encoded, ok := s.codec.Encode(e)
	if !ok {
		return false
	}

	if err := s.backend.Put(Namespace+key, []byte(encoded)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to persist entry")
		return false
	}
	s.bumpCounter()
	return true
}

// Get loads the payload stored under key into out. Returns false if the
// entry is absent, corrupted, fails its checksum, or has expired; in the
// failure cases the entry is deleted.
func (s *Store) Get(key string, out any) bool {
	raw, err := s.backend.Get(Namespace + key)
	if err != nil {
		return false
	}

	e, ok := s.decodeEntry(raw)
	if !ok || !s.verify(e) {
		s.Delete(key)
		return false
	}

	return json.Unmarshal(e.Payload, out) == nil
}

// Has reports whether a verifiable entry exists under key without
// deserializing its payload. Like Get, it purges entries that fail
// verification.
func (s *Store) Has(key string) bool {
	raw, err := s.backend.Get(Namespace + key)
	if err != nil {
		return false
	}
	e, ok := s.decodeEntry(raw)
	if !ok || !s.verify(e) {
		s.Delete(key)
		return false
	}
	return true
}

// Delete removes the entry stored under key.
func (s *Store) Delete(key string) {
	if err := s.backend.Delete(Namespace + key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to delete entry")
		return
	}
	s.bumpCounter()
}

// Clear removes every entry in the reserved namespace.
func (s *Store) Clear() {
	keys, err := s.backend.Keys(Namespace)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list entries for clear")
		return
	}
	for _, k := range keys {
		if err := s.backend.Delete(k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("Failed to delete entry during clear")
		}
	}
	if len(keys) > 0 {
		s.bumpCounter()
	}
}

// Sweep verifies every entry in the reserved namespace, purging checksum
// mismatches and expired entries. Returns the number purged.
func (s *Store) Sweep() int {
	keys, err := s.backend.Keys(Namespace)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list entries for sweep")
		return 0
	}

	purged := 0
	for _, k := range keys {
		raw, err := s.backend.Get(k)
		if err != nil {
			continue
		}
		e, ok := s.decodeEntry(raw)
		if ok && s.verify(e) {
			continue
		}
		if err := s.backend.Delete(k); err == nil {
			purged++
		}
	}
	if purged > 0 {
		log.Info().Int("purged", purged).Msg("Integrity sweep removed entries")
		s.bumpCounter()
	}
	return purged
}

// SweepExpired scans every key in the backend, inside the namespace or out,
// and purges any value that parses as a wrapper and is past the expiry
// window. Values that are not wrapper-shaped are left untouched.
func (s *Store) SweepExpired() int {
	keys, err := s.backend.Keys("")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list entries for expiry sweep")
		return 0
	}

	now := s.clk.Now().UnixMilli()
	purged := 0
	for _, k := range keys {
		if k == metaCounterKey {
			continue
		}
		raw, err := s.backend.Get(k)
		if err != nil {
			continue
		}
		e, ok := s.decodeEntry(raw)
		if !ok {
			continue
		}
		if now-e.StoredAt <= s.expiry.Milliseconds() {
			continue
		}
		if err := s.backend.Delete(k); err == nil {
			purged++
		}
	}
	if purged > 0 {
		log.Info().Int("purged", purged).Msg("Expiry sweep removed entries")
		s.bumpCounter()
	}
	return purged
}

// Backend exposes the underlying layer for callers that manage their own
// value format, such as the credential envelope.
func (s *Store) Backend() Backend {
	return s.backend
}

// decodeEntry recovers a wrapper from its obfuscated form. A wrapper must
// carry both a timestamp and a checksum to be treated as one.
func (s *Store) decodeEntry(raw []byte) (entry, bool) {
	var e entry
	if !s.codec.Decode(string(raw), &e) {
		return entry{}, false
	}
	if e.StoredAt == 0 || e.Checksum == "" {
		return entry{}, false
	}
	return e, true
}

// verify checks the wrapper's checksum and age.
func (s *Store) verify(e entry) bool {
	if checksum(e.Payload) != e.Checksum {
		return false
	}
	age := s.clk.Now().UnixMilli() - e.StoredAt
	return age >= 0 && age <= s.expiry.Milliseconds()
}

// checksum is a fast, order-sensitive hash over the serialized payload.
// It detects accidental corruption, not deliberate tampering; collisions
// are not a security concern here.
func checksum(raw []byte) string {
	h := fnv.New32a()
	h.Write(raw)
	return fmt.Sprintf("%08x", h.Sum32())
}

func (s *Store) loadCounter() int64 {
	raw, err := s.backend.Get(metaCounterKey)
	if err != nil {
		return 0
	}
	var n int64
	fmt.Sscanf(string(raw), "%d", &n)
	return n
}

func (s *Store) bumpCounter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	if err := s.backend.Put(metaCounterKey, []byte(fmt.Sprintf("%d", s.counter))); err != nil {
		log.Warn().Err(err).Msg("Failed to persist write counter")
	}
}

// WriteCounter returns the monotonic write counter used for backup
// rollback detection.
func (s *Store) WriteCounter() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

package store

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed export/restore of the namespaced entries. Unlike the live
// obfuscation this IS real encryption: the caller supplies a 32-byte key
// and gets back an authenticated blob suitable for off-device storage.

// SealedBackup is a portable, encrypted snapshot of the store's namespace.
type SealedBackup struct {
	Version   int    `json:"version"`
	Data      []byte `json:"data"` // XChaCha20-Poly1305 sealed CBOR payload
	HMAC      []byte `json:"hmac"` // HMAC-SHA256 over Data
	Counter   int64  `json:"counter"`
	CreatedAt int64  `json:"created_at"`
}

// backupPayload is the CBOR body inside a SealedBackup.
type backupPayload struct {
	Namespace string            `cbor:"namespace"`
	Entries   map[string][]byte `cbor:"entries"`
	Counter   int64             `cbor:"counter"`
	CreatedAt int64             `cbor:"created_at"`
}

const backupVersion = 1

// ExportSealed snapshots every namespaced entry into an encrypted backup.
// key must be 32 bytes.
func (s *Store) ExportSealed(key []byte) (*SealedBackup, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("backup key must be %d bytes", chacha20poly1305.KeySize)
	}

	keys, err := s.backend.Keys(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	payload := backupPayload{
		Namespace: Namespace,
		Entries:   make(map[string][]byte, len(keys)),
		Counter:   s.WriteCounter(),
		CreatedAt: s.clk.Now().UnixMilli(),
	}
	for _, k := range keys {
		v, err := s.backend.Get(k)
		if err != nil {
			continue
		}
		payload.Entries[k] = v
	}

	body, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	sealed, err := seal(key, body)
	if err != nil {
		return nil, fmt.Errorf("failed to seal backup: %w", err)
	}

	h := hmac.New(sha256.New, key)
	h.Write(sealed)

	return &SealedBackup{
		Version:   backupVersion,
		Data:      sealed,
		HMAC:      h.Sum(nil),
		Counter:   payload.Counter,
		CreatedAt: payload.CreatedAt,
	}, nil
}

// RestoreSealed replaces the store's namespace with the backup contents.
// It refuses a backup with a bad HMAC or one older (by write counter) than
// the current state, which would roll live data back.
func (s *Store) RestoreSealed(key []byte, b *SealedBackup) error {
	if len(key) != chacha20poly1305.KeySize {
		return fmt.Errorf("backup key must be %d bytes", chacha20poly1305.KeySize)
	}
	if b.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %d", b.Version)
	}

	h := hmac.New(sha256.New, key)
	h.Write(b.Data)
	if !hmac.Equal(b.HMAC, h.Sum(nil)) {
		return fmt.Errorf("backup HMAC verification failed")
	}

	if b.Counter < s.WriteCounter() {
		return fmt.Errorf("rollback detected: backup counter %d < current %d",
			b.Counter, s.WriteCounter())
	}

	body, err := open(key, b.Data)
	if err != nil {
		return fmt.Errorf("failed to unseal backup: %w", err)
	}

	var payload backupPayload
	if err := cbor.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}

	s.Clear()
	for k, v := range payload.Entries {
		if err := s.backend.Put(k, v); err != nil {
			return fmt.Errorf("failed to restore entry %q: %w", k, err)
		}
	}

	s.mu.Lock()
	s.counter = payload.Counter
	s.mu.Unlock()
	s.bumpCounter()
	return nil
}

// seal encrypts plaintext with XChaCha20-Poly1305, nonce prepended.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a blob produced by seal.
func open(key, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	ciphertext = ciphertext[nonceSize:]

	return aead.Open(nil, nonce, ciphertext, nil)
}

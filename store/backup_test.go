package store

import (
	"crypto/rand"
	"testing"
)

func backupKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestExportRestoreRoundTrip(t *testing.T) {
	s, _, _ := newTestStore()
	key := backupKey(t)

	s.Put("results/1", testPayload{Text: "first", Count: 1})
	s.Put("results/2", testPayload{Text: "second", Count: 2})

	backup, err := s.ExportSealed(key)
	if err != nil {
		t.Fatalf("ExportSealed failed: %v", err)
	}

	// Restore into a fresh store sharing the same clock baseline.
	dst, _, _ := newTestStore()
	if err := dst.RestoreSealed(key, backup); err != nil {
		t.Fatalf("RestoreSealed failed: %v", err)
	}

	var got testPayload
	if !dst.Get("results/2", &got) {
		t.Fatal("restored entry missing")
	}
	if got.Text != "second" || got.Count != 2 {
		t.Errorf("restored entry mismatch: %+v", got)
	}
}

func TestRestoreRejectsWrongKey(t *testing.T) {
	s, _, _ := newTestStore()
	key := backupKey(t)

	s.Put("results/1", testPayload{Text: "x"})
	backup, err := s.ExportSealed(key)
	if err != nil {
		t.Fatal(err)
	}

	dst, _, _ := newTestStore()
	if err := dst.RestoreSealed(backupKey(t), backup); err == nil {
		t.Error("restore with wrong key should fail")
	}
}

func TestRestoreRejectsTamperedData(t *testing.T) {
	s, _, _ := newTestStore()
	key := backupKey(t)

	s.Put("results/1", testPayload{Text: "x"})
	backup, err := s.ExportSealed(key)
	if err != nil {
		t.Fatal(err)
	}

	backup.Data[len(backup.Data)/2] ^= 0xFF

	dst, _, _ := newTestStore()
	if err := dst.RestoreSealed(key, backup); err == nil {
		t.Error("restore of tampered backup should fail")
	}
}

func TestRestoreRejectsRollback(t *testing.T) {
	s, _, _ := newTestStore()
	key := backupKey(t)

	s.Put("results/1", testPayload{Text: "old"})
	oldBackup, err := s.ExportSealed(key)
	if err != nil {
		t.Fatal(err)
	}

	// More writes move the counter past the backup's.
	s.Put("results/2", testPayload{Text: "newer"})
	s.Put("results/3", testPayload{Text: "newest"})

	if err := s.RestoreSealed(key, oldBackup); err == nil {
		t.Error("restoring a backup older than current state should fail")
	}
}

func TestExportRejectsShortKey(t *testing.T) {
	s, _, _ := newTestStore()

	if _, err := s.ExportSealed([]byte("short")); err == nil {
		t.Error("short key should be rejected")
	}
}

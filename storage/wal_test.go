package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func tempWALPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.ngs")
}

func TestWALCreateAndClose(t *testing.T) {
	dbPath := tempWALPath(t)
	wal, err := OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := len(wal.Records()); n != 0 {
		t.Errorf("expected 0 records, got %d", n)
	}
	if err := wal.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(dbPath + ".wal"); err != nil {
		t.Errorf("WAL file should exist: %v", err)
	}
}

func TestWALAppendAndReload(t *testing.T) {
	dbPath := tempWALPath(t)
	wal, err := OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := wal.Append(map[string]pending{"b": {val: []byte("2")}, "a": {val: []byte("1")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := wal.Append(map[string]pending{"a": {del: true}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	wal.Close()

	wal, err = OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer wal.Close()
	recs := wal.Records()
	if len(recs) != 3 || wal.Commits() != 2 {
		t.Fatalf("expected 3 records in 2 commits, got %d in %d", len(recs), wal.Commits())
	}
	// Les clés d'une validation sont journalisées dans l'ordre
	if string(recs[0].Key) != "a" || string(recs[1].Key) != "b" || string(recs[1].Value) != "2" {
		t.Errorf("unexpected first commit: %+v", recs[:2])
	}
	if recs[2].Type != WALDelete || recs[2].Value != nil {
		t.Errorf("expected a delete record, got %+v", recs[2])
	}
	// Les LSN continuent après réouverture
	if err := wal.Append(map[string]pending{"c": {val: []byte("3")}}); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if last := wal.Records()[3]; last.LSN <= recs[2].LSN {
		t.Errorf("LSN went backwards: %d after %d", last.LSN, recs[2].LSN)
	}
}

func TestWALIgnoresUncommittedTail(t *testing.T) {
	dbPath := tempWALPath(t)
	wal, err := OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	wal.Append(map[string]pending{"a": {val: []byte("1")}})
	wal.Close()

	// Une entrée sans marqueur de validation, comme après un crash
	f, err := os.OpenFile(dbPath+".wal", os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.Write(appendRecord(nil, WALRecord{LSN: 99, Type: WALSet, Key: []byte("z"), Value: []byte("x")}))
	f.Close()

	wal, err = OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if n := len(wal.Records()); n != 1 {
		t.Fatalf("expected 1 committed record, got %d", n)
	}
	// La fin orpheline est effacée : une validation suivante ne la reprend pas
	wal.Append(map[string]pending{"b": {val: []byte("2")}})
	wal.Close()

	wal, err = OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer wal.Close()
	for _, r := range wal.Records() {
		if string(r.Key) == "z" {
			t.Error("uncommitted record was replayed")
		}
	}
	if n := len(wal.Records()); n != 2 {
		t.Errorf("expected 2 committed records, got %d", n)
	}
}

func TestWALCRCIntegrity(t *testing.T) {
	dbPath := tempWALPath(t)
	wal, err := OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	wal.Append(map[string]pending{"key": {val: []byte("value")}})
	wal.Close()

	// Corrompre un octet de la valeur du premier record
	f, err := os.OpenFile(dbPath+".wal", os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteAt([]byte{0xFF}, walHeaderSize+walRecordHeaderSize+4)
	f.Close()

	wal, err = OpenWAL(dbPath)
	if err != nil {
		t.Fatalf("reopen after corruption: %v", err)
	}
	defer wal.Close()
	if n := len(wal.Records()); n != 0 {
		t.Errorf("expected 0 records after corruption, got %d", n)
	}
}

func TestWALBadHeader(t *testing.T) {
	dbPath := tempWALPath(t)
	if err := os.WriteFile(dbPath+".wal", []byte("not a journal at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWAL(dbPath); err == nil {
		t.Error("expected an error for a bad header")
	}
}

func TestWALTruncate(t *testing.T) {
	wal, err := OpenWAL(tempWALPath(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wal.Close()
	wal.Append(map[string]pending{"a": {val: []byte("1")}})
	if err := wal.Truncate(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if len(wal.Records()) != 0 || wal.Commits() != 0 {
		t.Error("truncate should empty the journal")
	}
	info, err := os.Stat(wal.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != walHeaderSize {
		t.Errorf("journal size = %d after truncate, want %d", info.Size(), walHeaderSize)
	}
}

// ---------- Journal + datastore fichier ----------

func TestFileRecoversFromWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.ngs")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tx := mustTx(t, f, true)
	tx.Set(ctx, []byte("a"), []byte("1"))
	tx.Set(ctx, []byte("b"), []byte("2"))
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	tx = mustTx(t, f, true)
	tx.Del(ctx, []byte("a"))
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Crash simulé : ni checkpoint ni instantané
	f.wal.Close()
	f.lock.Unlock()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("no snapshot expected before checkpoint, stat = %v", err)
	}

	f, err = OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	tx = mustTx(t, f, false)
	defer tx.Cancel()
	if v, _ := tx.Get(ctx, []byte("a")); v != nil {
		t.Errorf("a = %q, want deleted", v)
	}
	if v, _ := tx.Get(ctx, []byte("b")); string(v) != "2" {
		t.Errorf("b = %q, want 2", v)
	}
	// Le rejeu se termine par un checkpoint
	if f.wal.Commits() != 0 {
		t.Errorf("journal should be empty after replay, %d commits left", f.wal.Commits())
	}
}

func TestFileCheckpoint(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.ngs")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	f.checkpoint = 2
	for _, k := range []string{"a", "b"} {
		tx := mustTx(t, f, true)
		tx.Set(ctx, []byte(k), []byte(k))
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	if f.wal.Commits() != 0 {
		t.Errorf("expected a checkpoint after 2 commits, journal has %d", f.wal.Commits())
	}
	data, err := readSnapshot(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(data) != 2 {
		t.Errorf("snapshot has %d keys, want 2", len(data))
	}
}

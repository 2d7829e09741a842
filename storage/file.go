package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/snappy"
	"github.com/tinylib/msgp/msgp"
)

// Format de l'instantané :
//
//	[magic "NGS1"] [flag 1 octet : 0 brut, 1 snappy] [payload]
//
// payload = tableau MessagePack de 2n éléments binaires, clés et valeurs
// alternées, dans l'ordre des clés.
var snapshotMagic = []byte("NGS1")

const (
	flagRaw    byte = 0
	flagSnappy byte = 1
)

// ErrBadSnapshot indique un fichier d'instantané illisible.
var ErrBadSnapshot = errors.New("storage: invalid snapshot file")

// CheckpointEvery est le nombre de validations journalisées au-delà
// duquel l'instantané est réécrit et le journal vidé.
const CheckpointEvery = 64

// File est un datastore mémoire adossé à un instantané et à un journal
// (WAL). Chaque validation est ajoutée au journal ; l'instantané est
// réécrit au checkpoint. Un verrou exclusif inter-processus est tenu tant
// que le datastore est ouvert.
type File struct {
	*Memory
	path       string
	lock       *flock.Flock
	wal        *WAL
	checkpoint int
}

// OpenFile ouvre (ou crée) un datastore fichier. Les validations présentes
// dans le journal sont rejouées sur l'instantané.
func OpenFile(path string, opts ...MemoryOption) (*File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: open %s: %w", path, err)
		}
	}
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %q is used by another process", ErrLocked, path)
	}

	data, err := readSnapshot(path)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	wal, err := OpenWAL(path)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	replayed := wal.Records()
	for _, r := range replayed {
		if r.Type == WALDelete {
			delete(data, string(r.Key))
		} else {
			data[string(r.Key)] = r.Value
		}
	}

	f := &File{Memory: NewMemory(opts...), path: path, lock: fl, wal: wal, checkpoint: CheckpointEvery}
	f.Memory.load(data)
	f.Memory.persist = f.commit
	if len(replayed) > 0 {
		f.Memory.log.Info("write-ahead log replayed", "path", path, "records", len(replayed))
		if err := f.flush(data); err != nil {
			wal.Close()
			_ = fl.Unlock()
			return nil, err
		}
	}
	f.Memory.log.Debug("file datastore opened", "path", path, "keys", len(data))
	return f, nil
}

// Close écrit un dernier instantané, ferme le datastore et libère le verrou.
func (f *File) Close() error {
	f.Memory.mu.Lock()
	err := f.flush(f.Memory.data)
	f.Memory.mu.Unlock()
	if err != nil {
		return err
	}
	if err := f.Memory.Close(); err != nil {
		return err
	}
	if err := f.wal.Close(); err != nil {
		return err
	}
	return f.lock.Unlock()
}

// commit journalise une validation ; appelé sous le verrou du datastore.
func (f *File) commit(data map[string][]byte, writes map[string]pending) error {
	if err := f.wal.Append(writes); err != nil {
		return err
	}
	if f.wal.Commits() >= f.checkpoint {
		// La validation est déjà dans le journal
		if err := f.flush(data); err != nil {
			f.Memory.log.Warn("checkpoint failed", "path", f.path, "error", err)
		}
	}
	return nil
}

// flush réécrit l'instantané puis vide le journal.
func (f *File) flush(data map[string][]byte) error {
	if f.wal.Commits() == 0 {
		if _, err := os.Stat(f.path); err == nil {
			return nil
		}
	}
	if err := f.writeSnapshot(data); err != nil {
		return fmt.Errorf("storage: checkpoint: %w", err)
	}
	return f.wal.Truncate()
}

func readSnapshot(path string) (map[string][]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(raw) == 0) {
		return make(map[string][]byte), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read snapshot: %w", err)
	}
	if len(raw) < len(snapshotMagic)+1 || !bytes.Equal(raw[:len(snapshotMagic)], snapshotMagic) {
		return nil, ErrBadSnapshot
	}
	payload := raw[len(snapshotMagic)+1:]
	if raw[len(snapshotMagic)] == flagSnappy {
		if payload, err = snappy.Decode(nil, payload); err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrBadSnapshot, err)
		}
	}
	n, rest, err := msgp.ReadArrayHeaderBytes(payload)
	if err != nil || n%2 != 0 {
		return nil, fmt.Errorf("%w: header", ErrBadSnapshot)
	}
	data := make(map[string][]byte, n/2)
	for i := uint32(0); i < n; i += 2 {
		var k, v []byte
		if k, rest, err = msgp.ReadBytesBytes(rest, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		if v, rest, err = msgp.ReadBytesBytes(rest, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		data[string(k)] = v
	}
	return data, nil
}

// writeSnapshot écrit l'instantané dans un fichier temporaire puis le
// renomme, pour qu'un crash ne laisse jamais un fichier partiel.
func (f *File) writeSnapshot(data map[string][]byte) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := msgp.AppendArrayHeader(nil, uint32(2*len(keys)))
	for _, k := range keys {
		payload = msgp.AppendBytes(payload, []byte(k))
		payload = msgp.AppendBytes(payload, data[k])
	}

	// Compresser avec snappy si ça réduit la taille
	flag := flagRaw
	if c := snappy.Encode(nil, payload); len(c) < len(payload) {
		payload, flag = c, flagSnappy
	}
	out := make([]byte, 0, len(snapshotMagic)+1+len(payload))
	out = append(out, snapshotMagic...)
	out = append(out, flag)
	out = append(out, payload...)

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

var _ Datastore = (*File)(nil)

// Transaction ouvre une transaction sur le contenu en mémoire.
func (f *File) Transaction(ctx context.Context, write, lock bool) (Transaction, error) {
	return f.Memory.Transaction(ctx, write, lock)
}

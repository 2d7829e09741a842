package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"sync"
)

// WALRecordType identifie le type d'entrée du journal.
type WALRecordType byte

const (
	WALSet    WALRecordType = 1 // écriture d'une clé
	WALDelete WALRecordType = 2 // suppression d'une clé
	WALCommit WALRecordType = 3 // marqueur de validation
)

// En-tête du fichier (16 octets) :
// [0-3]  magic "NGWL"
// [4-7]  version (uint32)
// [8-15] réservé
const walHeaderSize = 16

var walMagic = [4]byte{'N', 'G', 'W', 'L'}

// Format d'une entrée :
//
//	[LSN:uint64][Type:byte][KeyLen:uint32][ValLen:uint32][Key][Val][CRC32:uint32]
//
// Un WALCommit n'a ni clé ni valeur.
const walRecordHeaderSize = 8 + 1 + 4 + 4
const walRecordCRCSize = 4

// ErrBadWAL indique un en-tête de journal illisible.
var ErrBadWAL = errors.New("storage: invalid write-ahead log")

// WALRecord est une entrée du journal.
type WALRecord struct {
	LSN   uint64
	Type  WALRecordType
	Key   []byte
	Value []byte
}

// WAL est le journal des validations du datastore fichier. Chaque
// validation y est ajoutée puis synchronisée ; l'instantané n'est
// réécrit qu'au checkpoint.
type WAL struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	nextLSN uint64
	size    int64 // fin de la dernière validation complète
	commits int
	records []WALRecord // entrées validées, dans l'ordre
}

// OpenWAL ouvre ou crée le journal associé à la base : dbPath + ".wal".
// Les entrées validées sont rechargées ; une fin de fichier tronquée,
// corrompue ou sans marqueur de validation est ignorée puis effacée.
func OpenWAL(dbPath string) (*WAL, error) {
	walPath := dbPath + ".wal"
	file, err := os.OpenFile(walPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open wal: %w", err)
	}
	w := &WAL{file: file, path: walPath, nextLSN: 1, size: walHeaderSize}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		err = w.writeHeader()
	} else if err = w.readHeader(); err == nil {
		err = w.loadRecords(info.Size())
	}
	if err == nil && info.Size() > w.size {
		err = file.Truncate(w.size)
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// Close ferme le journal.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Path retourne le chemin du fichier journal.
func (w *WAL) Path() string { return w.path }

// Append ajoute les écritures d'une transaction suivies d'un marqueur de
// validation, puis synchronise le fichier. En cas d'échec le journal est
// ramené à la validation précédente.
func (w *WAL) Append(writes map[string]pending) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys := make([]string, 0, len(writes))
	for k := range writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lsn := w.nextLSN
	recs := make([]WALRecord, 0, len(keys)+1)
	var buf []byte
	for _, k := range keys {
		rec := WALRecord{LSN: lsn, Type: WALSet, Key: []byte(k), Value: writes[k].val}
		if writes[k].del {
			rec.Type, rec.Value = WALDelete, nil
		}
		buf = appendRecord(buf, rec)
		recs = append(recs, rec)
		lsn++
	}
	buf = appendRecord(buf, WALRecord{LSN: lsn, Type: WALCommit})
	lsn++

	if _, err := w.file.WriteAt(buf, w.size); err != nil {
		w.rewind()
		return fmt.Errorf("storage: wal write: %w", err)
	}
	// fsync : la validation n'est durable qu'après cet appel
	if err := w.file.Sync(); err != nil {
		w.rewind()
		return fmt.Errorf("storage: wal fsync: %w", err)
	}
	w.size += int64(len(buf))
	w.nextLSN = lsn
	w.commits++
	w.records = append(w.records, recs...)
	return nil
}

// rewind efface une validation partiellement écrite.
func (w *WAL) rewind() {
	_ = w.file.Truncate(w.size)
}

// Records retourne les entrées validées, dans l'ordre du journal.
func (w *WAL) Records() []WALRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WALRecord(nil), w.records...)
}

// Commits retourne le nombre de validations depuis le dernier Truncate.
func (w *WAL) Commits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commits
}

// Truncate vide le journal après un checkpoint réussi.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Truncate(walHeaderSize); err != nil {
		return fmt.Errorf("storage: wal truncate: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("storage: wal fsync after truncate: %w", err)
	}
	w.size = walHeaderSize
	w.commits = 0
	w.records = nil
	return nil
}

// ---------- Format ----------

func (w *WAL) writeHeader() error {
	var hdr [walHeaderSize]byte
	copy(hdr[0:4], walMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], 1)
	if _, err := w.file.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("storage: wal header: %w", err)
	}
	return w.file.Sync()
}

func (w *WAL) readHeader() error {
	var hdr [walHeaderSize]byte
	if _, err := w.file.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("%w: %v", ErrBadWAL, err)
	}
	if [4]byte(hdr[0:4]) != walMagic {
		return fmt.Errorf("%w: magic", ErrBadWAL)
	}
	if v := binary.LittleEndian.Uint32(hdr[4:8]); v != 1 {
		return fmt.Errorf("%w: unsupported version %d", ErrBadWAL, v)
	}
	return nil
}

func appendRecord(buf []byte, rec WALRecord) []byte {
	start := len(buf)
	buf = binary.LittleEndian.AppendUint64(buf, rec.LSN)
	buf = append(buf, byte(rec.Type))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Key)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Value)))
	buf = append(buf, rec.Key...)
	buf = append(buf, rec.Value...)
	// CRC32 sur l'entrée entière, hors CRC
	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf[start:]))
}

// loadRecords relit le journal jusqu'à la première entrée incomplète ou
// corrompue. Seules les entrées suivies d'un WALCommit sont retenues.
func (w *WAL) loadRecords(fileSize int64) error {
	offset := int64(walHeaderSize)
	hdr := make([]byte, walRecordHeaderSize)
	var pendingRecs []WALRecord
	for {
		n, err := w.file.ReadAt(hdr, offset)
		if n < walRecordHeaderSize {
			if err != nil && err != io.EOF {
				return fmt.Errorf("storage: wal read at %d: %w", offset, err)
			}
			break
		}
		lsn := binary.LittleEndian.Uint64(hdr[0:8])
		typ := WALRecordType(hdr[8])
		klen := binary.LittleEndian.Uint32(hdr[9:13])
		vlen := binary.LittleEndian.Uint32(hdr[13:17])

		bodyLen := int64(klen) + int64(vlen) + walRecordCRCSize
		if offset+walRecordHeaderSize+bodyLen > fileSize {
			break // écriture interrompue
		}
		body := make([]byte, bodyLen)
		if n, _ := w.file.ReadAt(body, offset+walRecordHeaderSize); n < len(body) {
			break // écriture interrompue
		}
		crcAt := int(klen) + int(vlen)
		sum := crc32.NewIEEE()
		sum.Write(hdr)
		sum.Write(body[:crcAt])
		if binary.LittleEndian.Uint32(body[crcAt:]) != sum.Sum32() {
			break
		}
		offset += walRecordHeaderSize + int64(len(body))
		if lsn >= w.nextLSN {
			w.nextLSN = lsn + 1
		}

		switch typ {
		case WALSet, WALDelete:
			rec := WALRecord{LSN: lsn, Type: typ, Key: body[:int(klen)]}
			if typ == WALSet {
				rec.Value = body[int(klen):crcAt]
			}
			pendingRecs = append(pendingRecs, rec)
		case WALCommit:
			w.records = append(w.records, pendingRecs...)
			pendingRecs = nil
			w.size = offset
			w.commits++
		default:
			return fmt.Errorf("%w: unknown record type %d at %d", ErrBadWAL, typ, offset)
		}
	}
	return nil
}

package kb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot layout: a fixed header, the JSON phrase table, the JSON unit
// table, and a footer carrying a CRC32 of both tables. Postings and counts
// are derived from the phrase table on load, so phrase IDs are stable
// across a write/read cycle.
const (
	MagicBytes    uint32 = 0x524B4254
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// ErrSnapshotCorrupt is returned when a snapshot fails its integrity checks.
var ErrSnapshotCorrupt = errors.New("knowledge base snapshot is corrupt")

// SnapshotHeader is the fixed-size header at the start of a snapshot file.
type SnapshotHeader struct {
	Magic         uint32
	Version       uint32
	PhraseCount   uint32
	UnitCount     uint32
	CreatedAt     int64
	PhrasesOffset int64
	PhrasesSize   int64
	UnitsOffset   int64
	UnitsSize     int64
}

type phraseRecord struct {
	Text string `json:"p"`
	Slot Slot   `json:"s"`
}

// WriteSnapshot atomically writes kb to path. It writes to a .tmp file first
// and renames on success.
func WriteSnapshot(path string, kb *KnowledgeBase) error {
	records := make([]phraseRecord, len(kb.phrases))
	for i, p := range kb.phrases {
		records[i] = phraseRecord{Text: p.Text, Slot: p.Slot}
	}
	phrasesData, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling phrases: %w", err)
	}
	unitsData, err := json.Marshal(kb.units)
	if err != nil {
		return fmt.Errorf("marshaling units: %w", err)
	}

	header := SnapshotHeader{
		Magic:         MagicBytes,
		Version:       FormatVersion,
		PhraseCount:   uint32(len(records)),
		UnitCount:     uint32(len(kb.units)),
		CreatedAt:     time.Now().Unix(),
		PhrasesOffset: int64(HeaderSize),
		PhrasesSize:   int64(len(phrasesData)),
		UnitsOffset:   int64(HeaderSize + len(phrasesData)),
		UnitsSize:     int64(len(unitsData)),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.PhraseCount)
	binary.LittleEndian.PutUint32(headerBytes[12:16], header.UnitCount)
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(header.CreatedAt))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(header.PhrasesOffset))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(header.PhrasesSize))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(header.UnitsOffset))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(header.UnitsSize))

	crc := crc32.NewIEEE()
	crc.Write(phrasesData)
	crc.Write(unitsData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], header.PhraseCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.PhrasesSize))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.UnitsSize))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()
	for _, chunk := range [][]byte{headerBytes, phrasesData, unitsData, footer} {
		if _, err := f.Write(chunk); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

// ReadSnapshot loads a KnowledgeBase written by WriteSnapshot.
func ReadSnapshot(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	header, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	phrasesEnd := header.PhrasesOffset + header.PhrasesSize
	unitsEnd := header.UnitsOffset + header.UnitsSize
	if header.PhrasesOffset != int64(HeaderSize) || header.UnitsOffset != phrasesEnd ||
		unitsEnd+int64(FooterSize) != int64(len(data)) {
		return nil, fmt.Errorf("%w: section bounds do not match file size %d", ErrSnapshotCorrupt, len(data))
	}
	phrasesData := data[header.PhrasesOffset:phrasesEnd]
	unitsData := data[header.UnitsOffset:unitsEnd]
	footer := data[unitsEnd:]

	crc := crc32.NewIEEE()
	crc.Write(phrasesData)
	crc.Write(unitsData)
	if want := binary.LittleEndian.Uint32(footer[0:4]); crc.Sum32() != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}

	var records []phraseRecord
	if err := json.Unmarshal(phrasesData, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing phrases: %v", ErrSnapshotCorrupt, err)
	}
	if uint32(len(records)) != header.PhraseCount {
		return nil, fmt.Errorf("%w: expected %d phrases, found %d", ErrSnapshotCorrupt, header.PhraseCount, len(records))
	}
	var units map[string]Unit
	if err := json.Unmarshal(unitsData, &units); err != nil {
		return nil, fmt.Errorf("%w: parsing units: %v", ErrSnapshotCorrupt, err)
	}

	b := NewBuilder()
	for form, unit := range units {
		b.AddUnit(form, unit)
	}
	for _, r := range records {
		if err := b.Add(strings.Fields(r.Text), r.Slot); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
		}
	}
	return b.Build(), nil
}

func parseHeader(data []byte) (SnapshotHeader, error) {
	if len(data) < HeaderSize+FooterSize {
		return SnapshotHeader{}, fmt.Errorf("%w: file too short (%d bytes)", ErrSnapshotCorrupt, len(data))
	}
	h := SnapshotHeader{
		Magic:         binary.LittleEndian.Uint32(data[0:4]),
		Version:       binary.LittleEndian.Uint32(data[4:8]),
		PhraseCount:   binary.LittleEndian.Uint32(data[8:12]),
		UnitCount:     binary.LittleEndian.Uint32(data[12:16]),
		CreatedAt:     int64(binary.LittleEndian.Uint64(data[16:24])),
		PhrasesOffset: int64(binary.LittleEndian.Uint64(data[24:32])),
		PhrasesSize:   int64(binary.LittleEndian.Uint64(data[32:40])),
		UnitsOffset:   int64(binary.LittleEndian.Uint64(data[40:48])),
		UnitsSize:     int64(binary.LittleEndian.Uint64(data[48:56])),
	}
	if h.Magic != MagicBytes {
		return h, fmt.Errorf("%w: bad magic bytes %x", ErrSnapshotCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, h.Version)
	}
	if h.PhrasesSize < 0 || h.UnitsSize < 0 || h.PhrasesOffset < 0 || h.UnitsOffset < 0 {
		return h, fmt.Errorf("%w: negative section size", ErrSnapshotCorrupt)
	}
	return h, nil
}

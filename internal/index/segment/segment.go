// Package segment persists release documents as on-disk segment files: a
// fixed binary header, a JSON document block, and a CRC-checked footer.
// Segments are written once by the release loader and opened read-only by
// the query service.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/snograph/snoquery/internal/index"
)

// Segment file layout constants. Magic spells "SQSG".
const (
	MagicBytes    uint32 = 0x53515347
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	Extension            = ".sqseg"
)

type header struct {
	Magic    uint32
	Version  uint32
	DocCount uint32
	Checksum uint32
	DocsSize int64
	Created  int64
}

// Writer serialises document batches into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file containing the given
// documents. It writes to a .tmp file first and renames on success.
func (w *Writer) Write(name string, docs []index.Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	segmentName := fmt.Sprintf("%s_%d%s", name, time.Now().UnixNano(), Extension)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	docsData, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshaling segment documents: %w", err)
	}

	h := header{
		Magic:    MagicBytes,
		Version:  FormatVersion,
		DocCount: uint32(len(docs)),
		Checksum: crc32.ChecksumIEEE(docsData),
		DocsSize: int64(len(docsData)),
		Created:  time.Now().Unix(),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], h.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], h.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], h.DocCount)
	binary.LittleEndian.PutUint32(headerBytes[12:16], h.Checksum)
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(h.Created))

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing segment header: %w", err)
	}
	if _, err := f.Write(docsData); err != nil {
		return "", fmt.Errorf("writing segment documents: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

// Reader reads one segment file.
type Reader struct {
	path   string
	header header
}

// OpenReader validates the header of a segment file.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	defer f.Close()
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file %s: bad magic bytes %x", path, magic)
	}
	version := binary.LittleEndian.Uint32(headerBytes[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("invalid segment file %s: unsupported version %d", path, version)
	}
	return &Reader{
		path: path,
		header: header{
			Magic:    magic,
			Version:  version,
			DocCount: binary.LittleEndian.Uint32(headerBytes[8:12]),
			Checksum: binary.LittleEndian.Uint32(headerBytes[12:16]),
			DocsSize: int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
			Created:  int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		},
	}, nil
}

// DocCount returns the number of documents recorded in the header.
func (r *Reader) DocCount() int {
	return int(r.header.DocCount)
}

// ReadAll loads and checksum-verifies every document in the segment.
func (r *Reader) ReadAll() ([]index.Document, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	defer f.Close()
	docsData := make([]byte, r.header.DocsSize)
	if _, err := f.ReadAt(docsData, int64(HeaderSize)); err != nil {
		return nil, fmt.Errorf("reading segment documents: %w", err)
	}
	if checksum := crc32.ChecksumIEEE(docsData); checksum != r.header.Checksum {
		return nil, fmt.Errorf("segment %s corrupt: checksum %x, expected %x", r.path, checksum, r.header.Checksum)
	}
	var docs []index.Document
	if err := json.Unmarshal(docsData, &docs); err != nil {
		return nil, fmt.Errorf("parsing segment documents: %w", err)
	}
	return docs, nil
}

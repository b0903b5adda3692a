package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/lazypower/memvault/internal/memory"
)

// DumpVersion is the format version written by WriteDump.
const DumpVersion = 1

// DumpHeader describes the embedding space the dumped vectors belong to.
type DumpHeader struct {
	Version    int       `json:"version"`
	Model      string    `json:"model,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"`
	ExportedAt time.Time `json:"exported_at"`
}

// Dump is the full exported record set.
type Dump struct {
	DumpHeader
	Records []*memory.Record `json:"records"`
}

// Export reads every record from s, oldest first.
func Export(ctx context.Context, s memory.Store, hdr DumpHeader) (*Dump, error) {
	records, err := s.List(ctx, memory.ListOptions{Order: memory.OrderOldest})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	hdr.Version = DumpVersion
	if hdr.ExportedAt.IsZero() {
		hdr.ExportedAt = time.Now().UTC()
	}
	return &Dump{DumpHeader: hdr, Records: records}, nil
}

// WriteDump encodes d as indented JSON.
func WriteDump(w io.Writer, d *Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}

// ReadDump decodes a dump written by WriteDump.
func ReadDump(r io.Reader) (*Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	if d.Version != DumpVersion {
		return nil, fmt.Errorf("read dump: unsupported version %d", d.Version)
	}
	for i, rec := range d.Records {
		if rec == nil || rec.ID == "" {
			return nil, fmt.Errorf("read dump: record %d has no id", i)
		}
	}
	return &d, nil
}

func compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}

// CreateDumpFile creates path for writing. Paths ending in .zst are
// zstd-compressed.
func CreateDumpFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dump dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create dump: %w", err)
	}
	if !compressed(path) {
		return f, nil
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &zstdFile{Encoder: zw, f: f}, nil
}

// OpenDumpFile opens path for reading, decompressing .zst files.
func OpenDumpFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	if !compressed(path) {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &zstdReadFile{Decoder: zr, f: f}, nil
}

type zstdFile struct {
	*zstd.Encoder
	f *os.File
}

func (z *zstdFile) Close() error {
	if err := z.Encoder.Close(); err != nil {
		z.f.Close()
		return fmt.Errorf("flush zstd: %w", err)
	}
	return z.f.Close()
}

type zstdReadFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdReadFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

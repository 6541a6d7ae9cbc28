package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the current archive format.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of decompressed backup data (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

const (
	filePrefix = "axelrod-backup-"
	fileExt    = ".json.gz"
)

// Header is the plain-text first line of a backup file. The gzip-compressed
// archive follows it.
type Header struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	Checksum   string            `json:"checksum"`
	SweepCount int               `json:"sweep_count"`
	RunCount   int               `json:"run_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Write writes an archive as a header line followed by its gzip-compressed
// JSON payload.
func Write(path string, a *Archive) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header := Header{
		Version:    FormatVersion,
		CreatedAt:  a.CreatedAt,
		Checksum:   checksum(compressed.Bytes()),
		SweepCount: len(a.Sweeps),
		RunCount:   len(a.Runs),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}

	return f.Close()
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// readFile splits a backup file into its header and verified compressed
// payload.
func readFile(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := parseHeader(reader)
	if err != nil {
		return nil, nil, err
	}

	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}

	if actual := checksum(compressedData); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return header, compressedData, nil
}

func parseHeader(reader *bufio.Reader) (*Header, error) {
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version: %d", header.Version)
	}
	return &header, nil
}

// Read reads a backup file, verifies the checksum, and decompresses the archive.
func Read(path string) (*Archive, error) {
	_, compressedData, err := readFile(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	// Limit decompressed size
	limitedReader := io.LimitReader(gzr, MaxDecompressedSize+1)
	decompressed, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var archive Archive
	if err := json.Unmarshal(decompressed, &archive); err != nil {
		return nil, fmt.Errorf("parsing backup data: %w", err)
	}
	if archive.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version: %d", archive.Version)
	}

	return &archive, nil
}

// ReadHeader reads only the header line from a backup file without decompressing.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return parseHeader(bufio.NewReader(f))
}

// VerifyChecksum checks the integrity of a backup file without decompressing it.
func VerifyChecksum(path string) error {
	_, _, err := readFile(path)
	return err
}

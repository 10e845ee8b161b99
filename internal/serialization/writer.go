package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Write encodes f to w. Version, ID and creation time are filled in when
// empty.
func Write(w io.Writer, f *File) error {
	h := f.Header
	h.FormatVersion = FormatVersion
	if h.Version == "" {
		h.Version = Version
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if err := ValidateHeader(&h, int64(len(f.Data)), ValidationStrict); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}

	headerJSON, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	// Fixed header:
	//   0x00 magic, 0x04 version, 0x08 flags, 0x0C reserved,
	//   0x10 header size, 0x18 data size, 0x20 checksum.
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], h.flags())
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(f.Data)))
	sum := ComputeChecksum(headerJSON, f.Data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Calculate padding
	padding := alignedDataOffset(int64(len(headerJSON))) - int64(FixedHeaderSize+len(headerJSON))
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	f.Header = h
	return nil
}

// Save writes f to path, replacing any existing file.
func Save(path string, f *File) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()
	return Write(file, f)
}

package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/lopt/internal/tree"
)

// Write encodes theta to w.
//
// Leaves are written in sorted key order, so the same theta and meta always
// produce the same bytes.
func Write(w io.Writer, theta tree.Tree, meta Meta) error {
	header := Header{
		FormatVersion: FormatVersion,
		Optimizer:     meta.Optimizer,
		CreatedAt:     meta.CreatedAt,
		Tensors:       make([]TensorMeta, 0, len(theta)),
		Metadata:      meta.Metadata,
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data bytes.Buffer
	for _, name := range theta.Keys() {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		leaf := theta[name]
		offset := int64(data.Len())
		buf := make([]byte, 4*leaf.Len())
		for i, v := range leaf.Data() {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		data.Write(buf)

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  []int(leaf.Shape()),
			Offset: offset,
			Size:   int64(len(buf)),
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	h := sha256.New()
	h.Write(headerJSON)
	h.Write(data.Bytes())

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], h.Sum(nil))

	pad := padding(int64(FixedHeaderSize + len(headerJSON)))
	for _, part := range [][]byte{fixed, headerJSON, make([]byte, pad), data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}
	return nil
}

// Save writes theta to path. The file is written to a temporary name in the
// same directory and renamed, so a crash never leaves a truncated checkpoint.
func Save(path string, theta tree.Tree, meta Meta) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, theta, meta); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}

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

	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Read decodes a checkpoint from r, verifying its checksum and header.
func Read(r io.Reader) (tree.Tree, Meta, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, Meta{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, Meta{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, Meta{}, ErrHeaderTooLarge
	}
	if dataSize > MaxDataSize {
		return nil, Meta{}, &ValidationError{Type: "data_too_large", Details: fmt.Sprintf("%d bytes", dataSize)}
	}

	headerJSON, err := readExactly(r, int64(headerSize))
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read header: %w", err)
	}
	pad := padding(int64(FixedHeaderSize) + int64(headerSize))
	if _, err := io.CopyN(io.Discard, r, pad); err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read padding: %w", err)
	}
	data, err := readExactly(r, int64(dataSize))
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read tensor data: %w", err)
	}

	h := sha256.New()
	h.Write(headerJSON)
	h.Write(data)
	if !bytes.Equal(h.Sum(nil), fixed[ChecksumOffset:ChecksumOffset+ChecksumSize]) {
		return nil, Meta{}, ErrChecksumMismatch
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, Meta{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, Meta{}, fmt.Errorf("validation failed: %w", err)
	}

	theta := make(tree.Tree, len(header.Tensors))
	for _, tm := range header.Tensors {
		raw := data[tm.Offset : tm.Offset+tm.Size]
		values := make([]float32, len(raw)/4)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		leaf, err := tensor.FromSlice(values, tensor.Shape(tm.Shape))
		if err != nil {
			return nil, Meta{}, fmt.Errorf("tensor %s: %w", tm.Name, err)
		}
		theta[tm.Name] = leaf
	}

	return theta, Meta{
		Optimizer: header.Optimizer,
		CreatedAt: header.CreatedAt,
		Metadata:  header.Metadata,
	}, nil
}

// readExactly reads n bytes from r. The buffer grows with the bytes actually
// read, so a forged size in the fixed header cannot force a large allocation.
func readExactly(r io.Reader, n int64) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}

// Load reads the checkpoint at path.
func Load(path string) (tree.Tree, Meta, error) {
	//nolint:gosec // G304: checkpoint paths come from the user.
	f, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// LoadFor reads the checkpoint at path and checks that it was written for
// the named optimizer.
func LoadFor(path, optimizer string) (tree.Tree, Meta, error) {
	theta, meta, err := Load(path)
	if err != nil {
		return nil, Meta{}, err
	}
	if meta.Optimizer != optimizer {
		return nil, Meta{}, fmt.Errorf("%w: %q, want %q", ErrOptimizerMismatch, meta.Optimizer, optimizer)
	}
	return theta, meta, nil
}

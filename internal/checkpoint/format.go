package checkpoint

import "time"

// Format constants.
const (
	MagicBytes      = "LOPT"
	FormatVersion   = 1
	HeaderAlignment = 64 // tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64
	ChecksumSize    = 32
	ChecksumOffset  = 0x20
)

// DTypeFloat32 is the only element type written.
const DTypeFloat32 = "float32"

// Flags.
const (
	FlagHasMetadata uint32 = 1 << 0
)

// Header is the JSON header of a checkpoint.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Optimizer     string            `json:"optimizer"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
}

// TensorMeta describes one leaf of the tree.
type TensorMeta struct {
	Name   string `json:"name"`   // tree path, e.g. "mlp.linear_0.weight"
	DType  string `json:"dtype"`  // always "float32"
	Shape  []int  `json:"shape"`  // leaf shape
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Meta is the caller-facing part of the header.
type Meta struct {
	Optimizer string            // learned optimizer name
	CreatedAt time.Time         // set to the current time by Write when zero
	Metadata  map[string]string // free-form, e.g. the config the theta was trained with
}

func padding(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}

// Package checkpoint stores theta trees in the .lopt binary format.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00-0x03  magic "LOPT"
//	    0x04-0x07  format version (uint32 LE)
//	    0x08-0x0B  flags (uint32 LE)
//	    0x0C-0x0F  reserved
//	    0x10-0x17  JSON header size (uint64 LE)
//	    0x18-0x1F  tensor data size (uint64 LE)
//	    0x20-0x3F  SHA-256 of JSON header followed by tensor data
//	  [JSON header]
//	  [zero padding to a 64-byte boundary]
//	  [tensor data: little-endian float32, in sorted tensor-name order]
//
// Example usage:
//
//	theta, _ := lo.Init(prng.NewKey(0))
//	if err := checkpoint.Save("mlp.lopt", theta, checkpoint.Meta{Optimizer: lo.Name()}); err != nil {
//	    log.Fatal(err)
//	}
//
//	theta, meta, err := checkpoint.Load("mlp.lopt")
package checkpoint

// Package serialization stores trained models in the .tfnn container.
//
//	Format Structure:
//	  [0x00: Magic "TFNN"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: reserved]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Data Size (uint64 LE)]
//	  [0x20: SHA-256 of header JSON and data]
//	  [0x40: Header: JSON metadata]
//	  [Data: raw little-endian bytes, 64-byte aligned]
//
// A file holds either a float32 model (topology plus its parameter buffer)
// or a Q7 model (topology, per-layer quantization parameters and the packed
// int8/int32 buffer). Loading a float32 file yields a model marked as
// initialized, so training can resume with nn.InitNone and quantization
// accepts it.
//
// Example usage:
//
//	f := &serialization.File{}
//	if err := f.SetFloat(model, params); err != nil {
//	    return err
//	}
//	if err := serialization.Save("model.tfnn", f); err != nil {
//	    return err
//	}
//
//	loaded, err := serialization.Load("model.tfnn")
//	model, params, err := loaded.Float()
package serialization

// Package possession captures, encodes and restores a subject's inventory and
// armor.
//
// # Overview
//
// A Snapshot is a copy of the inventory and armor slots of a live subject,
// taken on that subject's own execution context. Empty slots are nil and are
// preserved through encoding so restoration puts every item back into the
// slot it came from.
//
// The store only ever sees the encoded text produced by a Codec. The encoding
// is CBOR (core deterministic mode), compressed with zstd, prefixed with a
// format byte and wrapped in standard base64:
//
//	codec := possession.NewCodec()
//	text, err := codec.Encode(snap.Inventory)
//	...
//	items, err := codec.Decode(text)
//
// Decoding text that is not a valid snapshot returns an error wrapping
// ErrCorruptSnapshot.
package possession

package possession

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// ErrCorruptSnapshot is returned when encoded text cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt possession snapshot")

// formatV1 marks a zstd-compressed CBOR payload.
const formatV1 byte = 1

// maxDecodedSize bounds decompression of a single slot list.
const maxDecodedSize = 16 << 20

// Codec converts slot lists to and from their persisted text form.
// A Codec is safe for concurrent use.
type Codec struct {
	em  cbor.EncMode
	dm  cbor.DecMode
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec creates a codec. It panics only if the static encoder options are
// invalid, which would be a programming error.
func NewCodec() *Codec {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("possession: cbor encode mode: %v", err))
	}
	dm, err := cbor.DecOptions{MaxArrayElements: 4096, MaxMapPairs: 4096}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("possession: cbor decode mode: %v", err))
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("possession: zstd writer: %v", err))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic(fmt.Sprintf("possession: zstd reader: %v", err))
	}
	return &Codec{em: em, dm: dm, enc: enc, dec: dec}
}

// Encode serializes a slot list. Empty slots are preserved.
func (c *Codec) Encode(slots []*Item) (string, error) {
	raw, err := c.em.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("failed to marshal slots: %w", err)
	}

	payload := make([]byte, 1, 1+len(raw))
	payload[0] = formatV1
	payload = c.enc.EncodeAll(raw, payload)

	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decode restores a slot list produced by Encode.
func (c *Codec) Decode(text string) ([]*Item, error) {
	payload, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrCorruptSnapshot, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptSnapshot)
	}
	if payload[0] != formatV1 {
		return nil, fmt.Errorf("%w: unknown format %d", ErrCorruptSnapshot, payload[0])
	}

	raw, err := c.dec.DecodeAll(payload[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptSnapshot, err)
	}

	var slots []*Item
	if err := c.dm.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("%w: cbor: %v", ErrCorruptSnapshot, err)
	}
	return slots, nil
}

// DecodeSnapshot decodes both halves of a persisted snapshot.
func (c *Codec) DecodeSnapshot(inventory, armor string) (Snapshot, error) {
	inv, err := c.Decode(inventory)
	if err != nil {
		return Snapshot{}, fmt.Errorf("inventory: %w", err)
	}
	arm, err := c.Decode(armor)
	if err != nil {
		return Snapshot{}, fmt.Errorf("armor: %w", err)
	}
	return Snapshot{Inventory: inv, Armor: arm}, nil
}

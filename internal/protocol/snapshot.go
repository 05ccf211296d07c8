package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	snapshotEncoder *zstd.Encoder
	snapshotDecoder *zstd.Decoder
)

func init() {
	var err error
	snapshotEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("zstd encoder: " + err.Error())
	}
	snapshotDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("zstd decoder: " + err.Error())
	}
}

// EncodeSnapshot marshals a full-state server message and compresses it.
// Full snapshots are the largest payloads on the wire; everything else is
// sent as plain JSON.
func EncodeSnapshot(msg ServerMessage) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return snapshotEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeSnapshot decompresses and unmarshals a snapshot payload.
func DecodeSnapshot(data []byte) (ServerMessage, error) {
	raw, err := snapshotDecoder.DecodeAll(data, nil)
	if err != nil {
		return ServerMessage{}, fmt.Errorf("snapshot decompress: %w", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("snapshot decode: %w", err)
	}
	return msg, nil
}

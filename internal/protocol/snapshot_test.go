package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	msg := ServerMessage{
		Type: MsgFullSnapshot,
		State: &SerializedNode{
			Type: "ingame",
			Data: json.RawMessage(`{"round":3,"players":[{"user_id":"alice","house_id":"stark"}]}`),
		},
	}

	data, err := EncodeSnapshot(msg)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if got.Type != MsgFullSnapshot || got.State == nil || got.State.Type != "ingame" {
		t.Fatalf("round trip lost structure: %+v", got)
	}
	if !bytes.Equal(got.State.Data, msg.State.Data) {
		t.Fatalf("payload changed: %s vs %s", got.State.Data, msg.State.Data)
	}
}

func TestSnapshotCompresses(t *testing.T) {
	// Repetitive board data should shrink on the wire.
	var entries []PlacedOrderEntry
	for i := 0; i < 200; i++ {
		entries = append(entries, PlacedOrderEntry{RegionID: "the-long-region-name", OrderID: IntPtr(1)})
	}
	msg := ServerMessage{Type: MsgOrdersRevealed, PlacedOrders: entries}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	data, err := EncodeSnapshot(msg)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	if len(data) >= len(raw) {
		t.Fatalf("snapshot not compressed: %d >= %d", len(data), len(raw))
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("not a zstd frame")); err == nil {
		t.Fatal("garbage input must fail")
	}
}

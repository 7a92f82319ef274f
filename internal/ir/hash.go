package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCommand = "mosaic/command/v1"
	DomainState   = "mosaic/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommandID computes the content-addressed id of a journaled command.
// The id is stable across replays given the same inputs, so writing the
// same command twice is detected by the journal's unique id.
func CommandID(boardID, op string, caller Caller, tile Tile, now, seq int64) (string, error) {
	obj := map[string]any{
		"board":  boardID,
		"op":     op,
		"caller": caller,
		"now":    now,
		"seq":    seq,
	}
	if tile != nil {
		obj["tile"] = tile
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CommandID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, canonical), nil
}

// StateDigest hashes a canonical snapshot of board state. Two boards with
// equal digests hold identical cells, watermark and lifecycle state.
func StateDigest(state map[string]any) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustCommandID is like CommandID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommandID(boardID, op string, caller Caller, tile Tile, now, seq int64) string {
	id, err := CommandID(boardID, op, caller, tile, now, seq)
	if err != nil {
		panic(err)
	}
	return id
}

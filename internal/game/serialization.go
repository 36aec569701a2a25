package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"

	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// checksumVersion changes whenever the canonical rendering changes.
const checksumVersion = 1

// SerializationChecksum is a deterministic fingerprint of a game record.
type SerializationChecksum struct {
	Hash    string
	Version int
}

// ComputeChecksum hashes the canonical text rendering of the record. Two
// records have the same checksum exactly when every rule-visible field is
// equal.
func (rec *GameRecord) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(rec.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: checksumVersion,
	}, nil
}

func (rec *GameRecord) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%d|%s|%s|%s\n", rec.ID, rec.Turn, rec.Phase, rec.EndReason, rec.ConcededBy)
	for _, side := range rules.Sides {
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%d|%d|%d\n",
			side,
			rec.Players[side],
			rec.Health[side],
			rec.Mana[side].Cap,
			rec.Mana[side].Available,
		)
		for column, slot := range rec.Board[side] {
			if !slot.Occupied {
				continue
			}
			fmt.Fprintf(&buf, "  SLOT:%d|%s\n", column, unitLine(slot.Unit))
		}
		// hand order is meaningful
		for i, unit := range rec.Hands[side] {
			fmt.Fprintf(&buf, "  HAND:%d|%s\n", i, unitLine(unit))
		}
	}
	return buf.String()
}

func unitLine(u Unit) string {
	return fmt.Sprintf("%s|%d|%d|%d|%s", u.Name, u.Health, u.Attack, u.ManaCost, u.Readiness)
}

// VerifyChecksum reports whether the record still matches expected.
func (rec *GameRecord) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := rec.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// EncodeRecord serializes a record with gob. Stores and replay files use the
// same encoding.
func EncodeRecord(rec *GameRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode game record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (*GameRecord, error) {
	var rec GameRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode game record: %w", err)
	}
	return &rec, nil
}

// ValidateSerializationRoundtrip checks that a record survives encoding by
// comparing checksums before and after.
func ValidateSerializationRoundtrip(rec *GameRecord) error {
	original, err := rec.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	decoded, err := DecodeRecord(data)
	if err != nil {
		return err
	}

	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute decoded checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, decoded=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}

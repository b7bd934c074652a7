package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing. The version suffix enables future
// algorithm migration without colliding with old hashes.
const (
	DomainEvent = "quill/event/v1"
	DomainState = "quill/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the content hash of an appended envelope.
// Two envelopes with the same identity, payload, and log position hash
// identically on every replica; the engine uses this to cross-check that
// independent replicas observed the same event.
//
// Seq is included: a content hash identifies "this fact at this log
// position", which is what replica comparison needs.
func ContentHash(env Envelope) (string, error) {
	payload, err := PayloadMap(env.Payload)
	if err != nil {
		return "", fmt.Errorf("ContentHash: %w", err)
	}

	obj := map[string]any{
		"id":        env.ID,
		"name":      env.Name,
		"scope":     env.Scope,
		"writerId":  env.WriterID,
		"writerSeq": env.WriterSeq,
		"seq":       env.Seq,
		"payload":   payload,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ContentHash: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// StateDigest hashes a canonical-JSON rendering of derived state.
// Replaying the same event sequence on two independent engines must yield
// the same digest - this is the determinism check's primitive.
func StateDigest(canonical []byte) string {
	return hashWithDomain(DomainState, canonical)
}

package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"certproof/internal/models"
)

// Fields is the fixed, ordered subset of extracted fields that contributes to
// a certificate's hash key. Order matters: it is part of the wire format of
// the digest and must never change for already-registered certificates.
var Fields = []string{
	models.FieldStudentName,
	models.FieldRollNumber,
	models.FieldCourse,
	models.FieldInstitution,
	models.FieldGrade,
	models.FieldDateOfCompletion,
}

// Canonicalize maps a raw field value to its fingerprint form: trimmed,
// case-folded, NFKC-normalized. A missing field and a blank field both
// canonicalize to the empty string, which the digest encodes explicitly as a
// zero-length field rather than omitting it.
func Canonicalize(value string) string {
	return norm.NFKC.String(strings.ToLower(strings.TrimSpace(value)))
}

// Compute derives the hash key for an extracted record: the SHA-256 digest of
// the canonical fingerprinted fields, each length-prefixed so that field
// boundaries are unambiguous ("AB"+"C" never collides with "A"+"BC"),
// rendered as 64 lowercase hex characters.
//
// Pure function: no I/O, no state, identical input always yields the
// identical key.
func Compute(record models.ExtractedRecord) string {
	h := sha256.New()
	var prefix [4]byte
	for _, name := range Fields {
		canonical := Canonicalize(record.Field(name))
		binary.BigEndian.PutUint32(prefix[:], uint32(len(canonical)))
		h.Write(prefix[:])
		h.Write([]byte(canonical))
	}
	return hex.EncodeToString(h.Sum(nil))
}

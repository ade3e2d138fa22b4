// Package ledger tracks which postings have already been through a cycle.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/amishk599/hirewire/internal/model"
)

// Fingerprint hashes the identity fields of a job: source, id, url, title and
// company, in that order. Each field is length-prefixed so no two distinct
// tuples can produce the same byte stream. The result is 64 hex characters.
//
// Description, location and timestamps are deliberately excluded; they drift
// between fetches of the same posting.
func Fingerprint(job model.Job) string {
	h := sha256.New()

	var lenBuf [8]byte
	writeField := func(s string) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}

	writeField(job.Source)
	writeField(job.ID)
	writeField(job.URL)
	writeField(job.Title)
	writeField(job.Company)

	return hex.EncodeToString(h.Sum(nil))
}

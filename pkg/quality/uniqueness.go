package quality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"recordguard-hq/recordguard/pkg/validation"
)

// UniquenessOracle scores how unique a record is among the records of its
// type. Validation never looks records up on its own; callers with a backing
// store provide an oracle.
type UniquenessOracle interface {
	Uniqueness(ctx context.Context, entityType string, record validation.Record) (float64, error)
}

// FixedUniqueness scores every record the same.
type FixedUniqueness float64

// Uniqueness implements UniquenessOracle.
func (f FixedUniqueness) Uniqueness(context.Context, string, validation.Record) (float64, error) {
	return float64(f), nil
}

// DefaultUniqueness is used when no oracle is configured.
const DefaultUniqueness FixedUniqueness = 100

// BatchUniqueness scores records by how many records of the same batch share
// their content. Identifier fields are ignored. It is read-only after
// construction and safe for concurrent use.
type BatchUniqueness struct {
	counts map[string]int
}

// NewBatchUniqueness indexes records for scoring.
func NewBatchUniqueness(records []validation.Record) *BatchUniqueness {
	b := &BatchUniqueness{counts: make(map[string]int, len(records))}
	for _, r := range records {
		b.counts[fingerprint(r)]++
	}
	return b
}

// Uniqueness implements UniquenessOracle. A record seen once scores 100 and
// a record shared by n records scores 100/n.
func (b *BatchUniqueness) Uniqueness(_ context.Context, _ string, record validation.Record) (float64, error) {
	n := b.counts[fingerprint(record)]
	if n <= 1 {
		return 100, nil
	}
	return round(100 / float64(n)), nil
}

func isIDField(name string) bool {
	n := strings.ToLower(name)
	return n == "id" || strings.HasSuffix(n, "_id") || strings.HasSuffix(name, "Id") || strings.HasSuffix(name, "ID")
}

// fingerprint hashes the non-identifier content of a record. Keys are
// visited in sorted order and values are JSON encoded, which sorts nested
// map keys as well.
func fingerprint(record validation.Record) string {
	h := sha256.New()
	for _, k := range slices.Sorted(maps.Keys(record)) {
		if isIDField(k) {
			continue
		}
		b, err := json.Marshal(record[k])
		if err != nil {
			b = []byte("?")
		}
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

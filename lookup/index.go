// Package lookup answers IFSC queries over a captured record set. The
// index is static: it is built once from a JSON artifact and never
// mutated, so it is safe for concurrent readers.
package lookup

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hazyhaar/ifscdir/branch"
)

// ErrEmptyCode is returned for a blank query.
var ErrEmptyCode = errors.New("lookup: empty code")

// Index maps upper-cased IFSC codes to records.
type Index struct {
	records []branch.Record
	byCode  map[string][]int
}

// New indexes records, keeping their order.
func New(records []branch.Record) *Index {
	idx := &Index{records: records, byCode: make(map[string][]int, len(records))}
	for i, r := range records {
		k := strings.ToUpper(strings.TrimSpace(r.IFSC))
		idx.byCode[k] = append(idx.byCode[k], i)
	}
	return idx
}

// Load reads a JSON record artifact and indexes it.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lookup: open %s: %w", path, err)
	}
	defer f.Close()
	recs, err := branch.ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("lookup: read %s: %w", path, err)
	}
	return New(recs), nil
}

// Find returns every record whose code equals code, ignoring case, in
// record order. No match is an empty result, not an error.
func (idx *Index) Find(code string) ([]branch.Record, error) {
	k := strings.ToUpper(strings.TrimSpace(code))
	if k == "" {
		return nil, ErrEmptyCode
	}
	pos := idx.byCode[k]
	out := make([]branch.Record, len(pos))
	for i, p := range pos {
		out[i] = idx.records[p]
	}
	return out, nil
}

// Len returns the number of indexed records.
func (idx *Index) Len() int { return len(idx.records) }

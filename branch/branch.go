// Package branch defines the bank-branch directory data model: dropdown
// options, traversal paths, extracted details and the final Record, plus
// the JSON and CSV codecs used for checkpoint artifacts.
//
// Records are only built through NewRecord, which refuses any candidate
// without a well-formed IFSC routing code. Once built a Record is never
// mutated.
package branch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidIFSC is returned by NewRecord when the candidate's routing code
// does not have the IFSC shape.
var ErrInvalidIFSC = errors.New("branch: invalid IFSC code")

// MICRUnavailable is stored when a branch page carries no MICR code.
const MICRUnavailable = "Not Available"

// Level is one of the four cascading dropdowns, in dependency order.
type Level int

const (
	Bank Level = iota
	State
	District
	Branch
)

// Levels lists every level in traversal order.
var Levels = [...]Level{Bank, State, District, Branch}

func (l Level) String() string {
	switch l {
	case Bank:
		return "bank"
	case State:
		return "state"
	case District:
		return "district"
	case Branch:
		return "branch"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Next returns the level populated by a selection at l. The second result
// is false for Branch, which has no dependent dropdown.
func (l Level) Next() (Level, bool) {
	if l >= Branch {
		return l, false
	}
	return l + 1, true
}

// Option is one entry of a dropdown: the submitted value and its label.
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Path is the chain of options selected to reach a node. Entries below the
// node's depth are zero.
type Path struct {
	Bank     Option
	State    Option
	District Option
	Branch   Option
}

// At returns the option selected at level l.
func (p Path) At(l Level) Option {
	switch l {
	case Bank:
		return p.Bank
	case State:
		return p.State
	case District:
		return p.District
	default:
		return p.Branch
	}
}

// With returns a copy of p with the option at level l replaced.
func (p Path) With(l Level, o Option) Path {
	switch l {
	case Bank:
		p.Bank = o
	case State:
		p.State = o
	case District:
		p.District = o
	default:
		p.Branch = o
	}
	return p
}

// Labels returns the option labels from Bank down to depth inclusive.
func (p Path) Labels(depth Level) []string {
	out := make([]string, 0, int(depth)+1)
	for _, l := range Levels {
		if l > depth {
			break
		}
		out = append(out, p.At(l).Label)
	}
	return out
}

// Key identifies a leaf by its four labels, case-folded. Records carry the
// same labels, so a Record and the Path that produced it share a key.
func (p Path) Key() string {
	return leafKey(p.Bank.Label, p.State.Label, p.District.Label, p.Branch.Label)
}

func leafKey(parts ...string) string {
	for i, s := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return strings.Join(parts, "\x1f")
}

// Detail is a candidate extracted from a branch detail container, before
// validation.
type Detail struct {
	IFSC          string
	MICR          string
	Address       string
	Contact       string
	BranchDetails string
}

// Record is one captured branch.
type Record struct {
	BankName      string    `json:"bankName"`
	State         string    `json:"state"`
	District      string    `json:"district"`
	BranchName    string    `json:"branchName"`
	IFSC          string    `json:"ifscCode"`
	MICR          string    `json:"micrCode"`
	Address       string    `json:"address"`
	Contact       string    `json:"contact"`
	BranchDetails string    `json:"branchDetails"`
	ScrapedAt     time.Time `json:"scrapedAt"`
}

// Key returns the leaf key of the path that produced r. See Path.Key.
func (r Record) Key() string {
	return leafKey(r.BankName, r.State, r.District, r.BranchName)
}

// NewRecord validates d and binds it to the leaf path. at is truncated to
// milliseconds in UTC.
func NewRecord(p Path, d Detail, at time.Time) (Record, error) {
	code := strings.TrimSpace(d.IFSC)
	if !ValidIFSC(code) {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidIFSC, d.IFSC)
	}
	micr := strings.TrimSpace(d.MICR)
	if micr == "" {
		micr = MICRUnavailable
	}
	return Record{
		BankName:      p.Bank.Label,
		State:         p.State.Label,
		District:      p.District.Label,
		BranchName:    p.Branch.Label,
		IFSC:          code,
		MICR:          micr,
		Address:       d.Address,
		Contact:       d.Contact,
		BranchDetails: d.BranchDetails,
		ScrapedAt:     at.UTC().Truncate(time.Millisecond),
	}, nil
}

package branch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// CSVHeader is the fixed column order of the CSV artifact.
var CSVHeader = []string{
	"bankName", "state", "district", "branchName", "ifscCode",
	"micrCode", "address", "contact", "branchDetails", "scrapedAt",
}

// TimeLayout is the scrapedAt format used in CSV: ISO-8601, UTC, milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// WriteJSON writes records as an indented JSON array. A nil slice is
// written as [].
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("branch: encode json: %w", err)
	}
	return nil
}

// ReadJSON decodes a JSON array of records.
func ReadJSON(r io.Reader) ([]Record, error) {
	var out []Record
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("branch: decode json: %w", err)
	}
	return out, nil
}

// WriteCSV writes the header and one row per record. Every field is
// quoted, embedded quotes are doubled, and line breaks are removed so that
// each record occupies exactly one line.
func WriteCSV(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, CSVHeader)
	for _, r := range records {
		writeRow(bw, r.csvFields())
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("branch: write csv: %w", err)
	}
	return nil
}

func writeRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(csvClean(f), `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// csvClean applies the line-break normalisation of the CSV artifact.
func csvClean(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

func (r Record) csvFields() []string {
	return []string{
		r.BankName, r.State, r.District, r.BranchName, r.IFSC,
		r.MICR, r.Address, r.Contact, r.BranchDetails,
		r.ScrapedAt.UTC().Format(TimeLayout),
	}
}

// ReadCSV parses a CSV artifact written by WriteCSV.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("branch: read csv header: %w", err)
	}
	for i, h := range header {
		if h != CSVHeader[i] {
			return nil, fmt.Errorf("branch: csv column %d: got %q, want %q", i, h, CSVHeader[i])
		}
	}

	var out []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("branch: read csv: %w", err)
		}
		at, err := time.Parse(TimeLayout, row[9])
		if err != nil {
			return nil, fmt.Errorf("branch: csv scrapedAt %q: %w", row[9], err)
		}
		out = append(out, Record{
			BankName:      row[0],
			State:         row[1],
			District:      row[2],
			BranchName:    row[3],
			IFSC:          row[4],
			MICR:          row[5],
			Address:       row[6],
			Contact:       row[7],
			BranchDetails: row[8],
			ScrapedAt:     at.UTC(),
		})
	}
}

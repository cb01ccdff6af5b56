package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/ifscdir/branch"
)

// writeAtomic writes data to target through a .tmp sibling and a rename, so
// readers never observe a partial artifact.
func writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", filepath.Dir(target), err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func writeRecordsJSON(path string, records []branch.Record) error {
	var buf bytes.Buffer
	if err := branch.WriteJSON(&buf, records); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func writeRecordsCSV(path string, records []branch.Record) error {
	var buf bytes.Buffer
	if err := branch.WriteCSV(&buf, records); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func writeOptionsJSON(path string, opts []branch.Option) error {
	if opts == nil {
		opts = []branch.Option{}
	}
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode options: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

// LoadRecords reads a JSON artifact written by Flush.
func LoadRecords(path string) ([]branch.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	defer f.Close()
	return branch.ReadJSON(f)
}

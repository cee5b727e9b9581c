package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var csvHeader = []string{"host", "installed", "verified", "oldKeyExisted", "oldKeyRemoved", "comment"}

// CSVPath returns the audit file name used for a run tag.
func CSVPath(dir, tag string) string {
	return filepath.Join(dir, tag+"_rsa_regenerate.csv")
}

// WriteCSV writes records to the run's audit file and returns its path. An
// existing file with the same tag is replaced.
func WriteCSV(dir, tag string, records []Record) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create audit directory: %w", err)
	}

	path := CSVPath(dir, tag)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return "", fmt.Errorf("create audit file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write audit header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Host,
			strconv.FormatBool(r.Installed),
			strconv.FormatBool(r.Verified),
			strconv.FormatBool(r.OldKeyExisted),
			strconv.FormatBool(r.OldKeyRemoved),
			r.Comment(),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write audit row for %s: %w", r.Host, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush audit file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audit file: %w", err)
	}
	return path, nil
}

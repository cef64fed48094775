// Package dataset reads and writes the raw observation file.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

// Columns returns the top-level column names of a parquet file.
func Columns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name())
	}
	return names, nil
}

// Missing returns the names in required that are absent from columns.
func Missing(columns, required []string) []string {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := have[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// Read loads every observation from a raw parquet file.
func Read(path string) ([]models.RawObservation, error) {
	rows, err := parquet.ReadFile[models.RawObservation](path)
	if err != nil {
		return nil, fmt.Errorf("read raw dataset %s: %w", path, err)
	}
	for i := range rows {
		rows[i].Period = models.Midnight(rows[i].Period.UTC())
	}
	return rows, nil
}

// Write replaces the raw parquet file. Rows go to a temp file in the same
// directory which is then renamed over path.
func Write(path string, rows []models.RawObservation) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	if err := parquet.WriteFile(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write raw dataset: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace raw dataset: %w", err)
	}
	return nil
}

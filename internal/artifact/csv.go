package artifact

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// WriteCSV persists the frame as a CSV sibling of the parquet artifact,
// using the same temp-then-rename discipline. Missing values are empty
// fields.
func (w *Writer) WriteCSV(f Frame) (Descriptor, error) {
	final := w.Path(f.Name, f.Range, "csv")
	tmp := final + ".tmp"

	if err := w.writeCSVFile(tmp, f); err != nil {
		os.Remove(tmp)
		return Descriptor{}, fmt.Errorf("%w: csv %s: %v", domain.ErrWriteFailure, f.Name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return Descriptor{}, fmt.Errorf("%w: rename %s: %v", domain.ErrWriteFailure, final, err)
	}

	d := w.describe(f, final, "csv")
	w.logger.Info("artifact written", "name", d.Name, "format", d.Format, "path", d.Path, "rows", d.Rows)
	return d, nil
}

func (w *Writer) writeCSVFile(path string, f Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open: %v", err)
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(f.ColumnNames()); err != nil {
		file.Close()
		return fmt.Errorf("write header: %v", err)
	}

	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, v := range row {
			record[i] = CellString(f.Columns[i], v)
		}
		if err := cw.Write(record); err != nil {
			file.Close()
			return fmt.Errorf("write row: %v", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		file.Close()
		return fmt.Errorf("flush: %v", err)
	}
	return file.Close()
}

// ReadCSV loads a CSV artifact back as its header and string-rendered rows.
// Used by validation tooling and round-trip tests.
func ReadCSV(path string) (header []string, rows [][]string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv artifact: %w", err)
	}
	defer file.Close()

	all, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv artifact: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("csv artifact %s has no header", path)
	}
	return all[0], all[1:], nil
}

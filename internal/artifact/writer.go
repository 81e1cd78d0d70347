package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// Writer persists frames under a base directory. Writes go to a temporary
// file first and are renamed into place, so an aborted run never leaves a
// corrupt file at the canonical path.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir, creating it if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create artifact dir: %v", domain.ErrWriteFailure, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Path returns the canonical location for a logical name, range and format,
// e.g. "<dir>/hourly_2024-10-01_2024-10-07.parquet". The path is a pure
// function of its inputs so re-runs overwrite prior output.
func (w *Writer) Path(name string, r domain.DateRange, format string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.%s", name, r, format))
}

// WriteParquet persists the frame as a SNAPPY-compressed parquet file and
// returns its descriptor. Fails with ErrWriteFailure on any filesystem or
// encoding error.
func (w *Writer) WriteParquet(f Frame) (Descriptor, error) {
	final := w.Path(f.Name, f.Range, "parquet")
	tmp := final + ".tmp"

	if err := w.writeParquetFile(tmp, f); err != nil {
		os.Remove(tmp)
		return Descriptor{}, fmt.Errorf("%w: parquet %s: %v", domain.ErrWriteFailure, f.Name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return Descriptor{}, fmt.Errorf("%w: rename %s: %v", domain.ErrWriteFailure, final, err)
	}

	d := w.describe(f, final, "parquet")
	w.logger.Info("artifact written", "name", d.Name, "format", d.Format, "path", d.Path, "rows", d.Rows)
	return d, nil
}

func (w *Writer) writeParquetFile(path string, f Frame) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open: %v", err)
	}

	pw, err := writer.NewCSVWriter(parquetMetadata(f.Columns), fw, 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create writer: %v", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range f.Rows {
		if err := pw.Write(parquetRow(f.Columns, row)); err != nil {
			fw.Close()
			return fmt.Errorf("write row: %v", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize: %v", err)
	}
	return fw.Close()
}

// parquetMetadata builds the column schema in parquet-go's metadata string
// form. Metric columns are OPTIONAL so missing readings serialize as nulls,
// never as zeros.
func parquetMetadata(cols []Column) []string {
	md := make([]string, len(cols))
	for i, c := range cols {
		switch c.Type {
		case TypeString:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY", c.Name)
		case TypeTimestamp:
			md[i] = fmt.Sprintf("name=%s, type=INT64, convertedtype=TIMESTAMP_MILLIS", c.Name)
		case TypeDate:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8", c.Name)
		case TypeFloat:
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", c.Name)
		case TypeInt:
			md[i] = fmt.Sprintf("name=%s, type=INT64", c.Name)
		}
	}
	return md
}

// parquetRow converts frame cells to the values NewCSVWriter expects: nil
// stays nil (null), times become epoch millis or date strings.
func parquetRow(cols []Column, row []any) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		switch cols[i].Type {
		case TypeTimestamp:
			out[i] = v.(time.Time).UTC().UnixMilli()
		case TypeDate:
			out[i] = v.(time.Time).UTC().Format("2006-01-02")
		default:
			out[i] = v
		}
	}
	return out
}

func (w *Writer) describe(f Frame, path, format string) Descriptor {
	return Descriptor{
		Name:       f.Name,
		Path:       path,
		Format:     format,
		Rows:       len(f.Rows),
		Columns:    f.ColumnNames(),
		ProducedAt: domain.Now(),
	}
}

package format

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/keboola/db-extractor-common-sub000/core"
)

const timestampLayout = "2006-01-02 15:04:05.999999999"

// CSVWriter streams rows into a single csv file. Any failure is reported as *core.CSVWriteError.
type CSVWriter struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	writer *csv.Writer
	rows   int64
	record []string
}

// NewCSVWriter creates (or truncates) the file on path, creating parent directories.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &core.CSVWriteError{Path: path, Err: err}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, &core.CSVWriteError{Path: path, Err: err}
	}

	w := &CSVWriter{
		path: path,
		file: file,
	}
	w.reset()

	return w, nil
}

func (w *CSVWriter) reset() {
	w.buf = bufio.NewWriterSize(w.file, 64*1024)
	w.writer = csv.NewWriter(w.buf)
	w.rows = 0
}

func (w *CSVWriter) wrap(err error) error {
	return &core.CSVWriteError{Path: w.path, Err: err}
}

func (w *CSVWriter) Path() string {
	return w.path
}

// Rows returns the number of data rows written since creation or last Truncate.
func (w *CSVWriter) Rows() int64 {
	return w.rows
}

func (w *CSVWriter) WriteHeader(header core.Header) error {
	if err := w.writer.Write(header); err != nil {
		return w.wrap(err)
	}
	return nil
}

func (w *CSVWriter) WriteRow(row core.Row) error {
	w.record = w.record[:0]
	for _, v := range row {
		w.record = append(w.record, FormatValue(v))
	}

	if err := w.writer.Write(w.record); err != nil {
		return w.wrap(err)
	}
	w.rows++
	return nil
}

// Truncate drops everything written so far, so the file can be filled again from scratch.
func (w *CSVWriter) Truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return w.wrap(err)
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return w.wrap(err)
	}
	w.reset()
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		_ = w.file.Close()
		return w.wrap(err)
	}
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return w.wrap(err)
	}
	if err := w.file.Close(); err != nil {
		return w.wrap(err)
	}
	return nil
}

// Remove closes and deletes the file.
func (w *CSVWriter) Remove() error {
	_ = w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return w.wrap(err)
	}
	return nil
}

// FormatValue renders a scanned database value as a csv field. NULL is an empty field.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(timestampLayout)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

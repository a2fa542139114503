// Package bugreport writes login mismatches to a CSV file.
package bugreport

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampFormat is the layout of the Timestamp column.
const TimestampFormat = "2006-01-02 15:04:05"

// Header is the first row of every report.
var Header = []string{
	"Timestamp",
	"Test Description",
	"Email",
	"Password",
	"Expected Result",
	"Actual Result",
	"Bug Description",
}

// Bug is one reported mismatch.
type Bug struct {
	Description string
	Email       string
	Password    string
	Expected    string
	Actual      string
	Details     string
}

// Writer appends bugs to a CSV file. It is safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
	now  func() time.Time
	rows int
}

// Create truncates path and writes the header.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bug report directory: %w", err)
		}
	}
	f, err := os.Create(path) //#nosec G304 -- user-provided report path
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bug report file: %w", err)
	}

	w := &Writer{file: f, csv: csv.NewWriter(f), now: time.Now}
	if err := w.write(Header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Report appends one row.
func (w *Writer) Report(b Bug) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.write([]string{
		w.now().Format(TimestampFormat),
		b.Description,
		b.Email,
		b.Password,
		b.Expected,
		b.Actual,
		b.Details,
	})
	if err == nil {
		w.rows++
	}
	return err
}

// Count returns the number of bugs reported so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Path returns the report file path.
func (w *Writer) Path() string {
	return w.file.Name()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// write flushes every row so a crashed run keeps what it found.
func (w *Writer) write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("failed to write bug report: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("failed to write bug report: %w", err)
	}
	return nil
}

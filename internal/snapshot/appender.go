package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bar-replay-lab/internal/domain"
)

// Appender appends bars to a CSV snapshot file one at a time, creating the
// file with a header when absent. Each append is flushed so a killed feed
// process loses at most the bar in flight. Appended rows use the spreadless
// schema; the file stays loadable by Reader like any other snapshot.
type Appender struct {
	f *os.File
	w *csv.Writer
}

// OpenAppender opens path for appending, writing the header first when the
// file is new or empty.
func OpenAppender(path string) (*Appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	a := &Appender{f: f, w: csv.NewWriter(f)}

	if info.Size() == 0 {
		if err := a.w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
			f.Close()
			return nil, err
		}
		a.w.Flush()
		if err := a.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return a, nil
}

// Append writes one bar and flushes it to the file.
func (a *Appender) Append(bar domain.Bar) error {
	record := []string{
		bar.Timestamp.UTC().Format(time.RFC3339),
		formatFloat(bar.Open),
		formatFloat(bar.High),
		formatFloat(bar.Low),
		formatFloat(bar.Close),
		formatFloat(bar.Volume),
	}
	if err := a.w.Write(record); err != nil {
		return err
	}
	a.w.Flush()
	return a.w.Error()
}

// Close flushes and closes the underlying file.
func (a *Appender) Close() error {
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}

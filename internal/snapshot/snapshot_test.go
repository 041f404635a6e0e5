package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bar-replay-lab/internal/domain"
)

func testBars() []domain.Bar {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 4)
	for i := range bars {
		bars[i] = domain.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    float64(1000 * (i + 1)),
			Spread:    2,
			HasSpread: true,
		}
	}
	return bars
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testBars()

	if err := WriteCSV(filepath.Join(dir, "bars.csv"), want); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	got, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d bars, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("bar %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		if got[i].Close != want[i].Close || got[i].Volume != want[i].Volume {
			t.Errorf("bar %d = %+v, want %+v", i, got[i], want[i])
		}
		if !got[i].HasSpread || got[i].Spread != want[i].Spread {
			t.Errorf("bar %d spread = %v/%v", i, got[i].Spread, got[i].HasSpread)
		}
	}
}

func TestParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testBars()
	// One bar without spread to exercise the optional column.
	want[2].Spread = 0
	want[2].HasSpread = false

	if err := WriteParquet(filepath.Join(dir, "bars.parquet"), want); err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}

	got, err := NewReader(nil).LoadDir(dir, FormatParquet)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d bars, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("bar %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		if got[i].Open != want[i].Open || got[i].Close != want[i].Close {
			t.Errorf("bar %d prices = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].HasSpread != want[i].HasSpread {
			t.Errorf("bar %d HasSpread = %v, want %v", i, got[i].HasSpread, want[i].HasSpread)
		}
	}
}

func TestLoadDir_ConcatsInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2_second.csv", "time,open,high,low,close,volume\n2024-01-02T00:00:00Z,2,2,2,2,20\n")
	writeFile(t, dir, "1_first.csv", "time,open,high,low,close,volume\n2024-01-01T00:00:00Z,1,1,1,1,10\n")

	bars, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Open != 1 || bars[1].Open != 2 {
		t.Errorf("bars out of file order: %v, %v", bars[0].Open, bars[1].Open)
	}
}

func TestLoadDir_EmptyDir(t *testing.T) {
	_, err := NewReader(nil).LoadDir(t.TempDir(), FormatCSV)
	if err == nil || !strings.Contains(err.Error(), "no csv files found") {
		t.Fatalf("want no-files error, got %v", err)
	}
}

func TestReadCSV_TimeFormats(t *testing.T) {
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
	}{
		{"epoch seconds", "1709285400"},
		{"rfc3339", "2024-03-01T09:30:00Z"},
		{"space with offset", "2024-03-01 09:30:00+00:00"},
		{"naive utc", "2024-03-01 09:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "bars.csv",
				"time,open,high,low,close,volume\n"+tt.value+",1,1,1,1,0\n")

			bars, err := NewReader(nil).LoadDir(dir, FormatCSV)
			if err != nil {
				t.Fatalf("LoadDir: %v", err)
			}
			if !bars[0].Timestamp.Equal(want) {
				t.Errorf("timestamp = %v, want %v", bars[0].Timestamp, want)
			}
		})
	}
}

func TestReadCSV_UnparseableTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bars.csv", "time,open,high,low,close,volume\nnot-a-time,1,1,1,1,0\n")

	_, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("want line-numbered parse error, got %v", err)
	}
}

func TestReadCSV_EmptyTimeBecomesZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bars.csv", "time,open,high,low,close,volume\n,1,1,1,1,0\n")

	bars, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if !bars[0].Timestamp.IsZero() {
		t.Errorf("empty time should load as zero, got %v", bars[0].Timestamp)
	}
}

func TestReadCSV_MalformedPriceBecomesNaN(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bars.csv", "time,open,high,low,close,volume\n2024-01-01T00:00:00Z,oops,,1,1,0\n")

	bars, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if !math.IsNaN(bars[0].Open) || !math.IsNaN(bars[0].High) {
		t.Errorf("malformed prices should be NaN, got %+v", bars[0])
	}
	if bars[0].Low != 1 {
		t.Errorf("valid fields must parse, got %v", bars[0].Low)
	}
}

func TestReadCSV_VolumeAliasing(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		row        string
		wantVolume float64
		wantLog    string
	}{
		{"tick_volume", "time,open,high,low,close,tick_volume", "2024-01-01T00:00:00Z,1,1,1,1,42", 42, "aliasing 'tick_volume' to 'volume'"},
		{"real_volume", "time,open,high,low,close,real_volume", "2024-01-01T00:00:00Z,1,1,1,1,7", 7, "aliasing 'real_volume' to 'volume'"},
		{"no volume", "time,open,high,low,close", "2024-01-01T00:00:00Z,1,1,1,1", 0, "no volume column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "bars.csv", tt.header+"\n"+tt.row+"\n")

			var buf bytes.Buffer
			bars, err := NewReader(log.New(&buf, "", 0)).LoadDir(dir, FormatCSV)
			if err != nil {
				t.Fatalf("LoadDir: %v", err)
			}
			if bars[0].Volume != tt.wantVolume {
				t.Errorf("volume = %v, want %v", bars[0].Volume, tt.wantVolume)
			}
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("log %q missing %q", buf.String(), tt.wantLog)
			}
		})
	}
}

func TestReadCSV_MissingRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bars.csv", "time,open,high,low,volume\n2024-01-01T00:00:00Z,1,1,1,0\n")

	_, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err == nil || !strings.Contains(err.Error(), `missing "close" column`) {
		t.Fatalf("want missing-column error, got %v", err)
	}
}

func TestReadCSV_NoSpreadColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bars.csv", "time,open,high,low,close,volume\n2024-01-01T00:00:00Z,1,1,1,1,0\n")

	bars, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if bars[0].HasSpread {
		t.Error("HasSpread should be false without a spread column")
	}
}

func TestFingerprint(t *testing.T) {
	files := []domain.DataFile{
		{Name: "a.csv", Size: 10},
		{Name: "b.csv", Size: 20},
	}

	sum := sha256.Sum256([]byte("a.csv:10|b.csv:20"))
	want := hex.EncodeToString(sum[:])

	if got := Fingerprint(files); got != want {
		t.Errorf("Fingerprint = %s, want %s", got, want)
	}

	// Size changes change the digest.
	files[1].Size = 21
	if Fingerprint(files) == want {
		t.Error("fingerprint unchanged after size change")
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "bbbb")
	writeFile(t, dir, "a.csv", "aa")
	writeFile(t, dir, "ignored.txt", "x")

	ref, err := Describe(dir, FormatCSV, 123)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	if ref.Path != dir || ref.Rows != 123 {
		t.Errorf("ref = %+v", ref)
	}
	if len(ref.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(ref.Files))
	}
	if ref.Files[0].Name != "a.csv" || ref.Files[0].Size != 2 {
		t.Errorf("files not sorted by name: %+v", ref.Files)
	}
	if ref.Fingerprint != Fingerprint(ref.Files) {
		t.Error("fingerprint does not match inventory")
	}
}

func TestAppender_CreatesHeaderAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.csv")
	bars := testBars()

	a, err := OpenAppender(path)
	if err != nil {
		t.Fatalf("OpenAppender: %v", err)
	}
	for _, b := range bars[:2] {
		if err := a.Append(b); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(bars[0].Timestamp) || got[1].Close != bars[1].Close {
		t.Errorf("appended bars did not round-trip: %+v", got)
	}
	// Appended rows use the spreadless schema.
	if got[0].HasSpread {
		t.Error("appended bars must not carry a spread")
	}
}

func TestAppender_ResumesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.csv")
	bars := testBars()

	a, err := OpenAppender(path)
	if err != nil {
		t.Fatalf("OpenAppender: %v", err)
	}
	if err := a.Append(bars[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and keep appending; no second header may appear.
	a, err = OpenAppender(path)
	if err != nil {
		t.Fatalf("OpenAppender (reopen): %v", err)
	}
	for _, b := range bars[1:3] {
		if err := a.Append(b); err != nil {
			t.Fatalf("Append after reopen: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if n := strings.Count(string(data), "time,open"); n != 1 {
		t.Errorf("Expected exactly 1 header, got %d", n)
	}

	got, err := NewReader(nil).LoadDir(dir, FormatCSV)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bars, want 3", len(got))
	}
}

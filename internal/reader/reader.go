// Package reader parses the raw meter archive into an ordered sequence of
// minute readings.
package reader

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

// MissingSentinel marks a missing numeric value in the source file.
const MissingSentinel = "?"

const timestampLayout = "2/1/2006 15:04:05"

// ParseError reports a malformed row with its position in the source stream.
// Parse errors are fatal for the batch; the caller decides tolerance.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reader: line %d: field %q: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateTimestampError reports two raw rows sharing one timestamp, which
// is a data-integrity error rather than something to resolve silently.
type DuplicateTimestampError struct {
	Timestamp time.Time
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("reader: duplicate timestamp %s", e.Timestamp.Format(time.RFC3339))
}

// OpenArchive resolves the single text file inside a zip archive to a byte
// stream. Closing the returned reader releases the archive handle.
func OpenArchive(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".txt") {
			entry = f
			break
		}
	}
	if entry == nil {
		zr.Close()
		return nil, fmt.Errorf("archive %s contains no .txt entry", path)
	}

	rc, err := entry.Open()
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}

	return &archiveEntry{rc: rc, zr: zr}, nil
}

type archiveEntry struct {
	rc io.ReadCloser
	zr *zip.ReadCloser
}

func (a *archiveEntry) Read(p []byte) (int, error) { return a.rc.Read(p) }

func (a *archiveEntry) Close() error {
	err := a.rc.Close()
	if cerr := a.zr.Close(); err == nil {
		err = cerr
	}
	return err
}

// Parse reads the semicolon-delimited meter file and returns readings sorted
// ascending by timestamp. A positive limit truncates to the first N parsed
// rows in file order before sorting. Malformed rows abort the batch with a
// ParseError; duplicate timestamps abort with a DuplicateTimestampError.
func Parse(r io.Reader, limit int) ([]models.RawReading, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, fmt.Errorf("reader: empty input")
	}
	header := strings.Split(strings.TrimSpace(sc.Text()), ";")
	if len(header) != models.NumChannels+2 {
		return nil, fmt.Errorf("reader: header has %d fields, want %d", len(header), models.NumChannels+2)
	}

	readings := make([]models.RawReading, 0, 4096)
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, ";")
		if len(fields) != models.NumChannels+2 {
			return nil, &ParseError{Line: line, Field: "row", Err: fmt.Errorf("got %d fields, want %d", len(fields), models.NumChannels+2)}
		}

		ts, err := time.ParseInLocation(timestampLayout, fields[0]+" "+fields[1], time.UTC)
		if err != nil {
			return nil, &ParseError{Line: line, Field: "timestamp", Err: err}
		}

		reading := models.RawReading{Timestamp: ts}
		for i := 0; i < models.NumChannels; i++ {
			raw := strings.TrimSpace(fields[i+2])
			if raw == MissingSentinel || raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &ParseError{Line: line, Field: header[i+2], Err: err}
			}
			reading.Values[i] = &v
		}
		readings = append(readings, reading)

		if limit > 0 && len(readings) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	for i := 1; i < len(readings); i++ {
		if readings[i].Timestamp.Equal(readings[i-1].Timestamp) {
			return nil, &DuplicateTimestampError{Timestamp: readings[i].Timestamp}
		}
	}

	return readings, nil
}

// ParseArchive opens the archive at path and parses its contents.
func ParseArchive(path string, limit int) ([]models.RawReading, error) {
	rc, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Parse(rc, limit)
}

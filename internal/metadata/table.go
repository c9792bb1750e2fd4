// Package metadata reads and writes corpus metadata tables.
//
// A table is a CSV file with one row per audio clip, using the column order
// produced by the external decoder: split, path, text, speaker_id,
// duration_sec. Writes go through a temporary file followed by a rename so a
// crashed or interrupted run never leaves a truncated table behind.
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/book-expert/corpus-prep/internal/core"
)

// Column layout of a metadata table.
const (
	columnSplit       = "split"
	columnPath        = "path"
	columnText        = "text"
	columnSpeakerID   = "speaker_id"
	columnDurationSec = "duration_sec"

	columnCount = 5
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Static errors.
var (
	// ErrMissingHeader indicates the table has no header row.
	ErrMissingHeader = errors.New("metadata table has no header row")
	// ErrUnexpectedHeader indicates the header does not match the expected columns.
	ErrUnexpectedHeader = errors.New("metadata table has unexpected header")
)

var expectedHeader = []string{
	columnSplit, columnPath, columnText, columnSpeakerID, columnDurationSec,
}

// Load reads a metadata table from path. Rows with a malformed speaker id or
// duration are kept with NaN/zero values rather than failing the whole load;
// downstream consumers decide how to treat them.
func Load(path string) ([]core.MetadataEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata table %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = columnCount

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata table %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, path)
	}

	headerErr := validateHeader(records[0])
	if headerErr != nil {
		return nil, fmt.Errorf("%w: %s", headerErr, path)
	}

	entries := make([]core.MetadataEntry, 0, len(records)-1)
	for _, record := range records[1:] {
		entries = append(entries, parseRow(record))
	}

	return entries, nil
}

// SaveAtomic writes entries to path via a uniquely named temporary file in the
// same directory, then renames it into place. The parent directory is created
// if needed.
func SaveAtomic(path string, entries []core.MetadataEntry) error {
	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create metadata directory: %w", dirErr)
	}

	tempPath := path + ".tmp." + uuid.NewString()

	writeErr := writeTable(tempPath, entries)
	if writeErr != nil {
		_ = os.Remove(tempPath)

		return writeErr
	}

	renameErr := os.Rename(tempPath, path)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move metadata table into place: %w", renameErr)
	}

	return nil
}

func writeTable(path string, entries []core.MetadataEntry) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create metadata table %s: %w", path, err)
	}

	writer := csv.NewWriter(file)

	writeErr := writer.Write(expectedHeader)
	if writeErr == nil {
		for _, entry := range entries {
			writeErr = writer.Write(formatRow(entry))
			if writeErr != nil {
				break
			}
		}
	}

	writer.Flush()

	if writeErr == nil {
		writeErr = writer.Error()
	}

	closeErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write metadata table %s: %w", path, writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close metadata table %s: %w", path, closeErr)
	}

	return nil
}

func validateHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return ErrUnexpectedHeader
	}

	for index, name := range expectedHeader {
		if strings.TrimSpace(header[index]) != name {
			return ErrUnexpectedHeader
		}
	}

	return nil
}

func parseRow(record []string) core.MetadataEntry {
	speakerID, speakerErr := strconv.Atoi(strings.TrimSpace(record[3]))
	if speakerErr != nil {
		speakerID = 0
	}

	duration, durationErr := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
	if durationErr != nil {
		duration = math.NaN()
	}

	return core.MetadataEntry{
		Split:       core.Split(strings.TrimSpace(record[0])),
		Path:        record[1],
		Text:        record[2],
		SpeakerID:   speakerID,
		DurationSec: duration,
	}
}

func formatRow(entry core.MetadataEntry) []string {
	return []string{
		string(entry.Split),
		entry.Path,
		entry.Text,
		strconv.Itoa(entry.SpeakerID),
		strconv.FormatFloat(entry.DurationSec, 'f', 4, 64),
	}
}

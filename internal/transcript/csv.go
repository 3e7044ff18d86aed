package transcript

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

var (
	header        = []string{"Interval Start", "Interval End", "Start Time", "End Time", "Text"}
	speakerHeader = []string{"Interval Start", "Interval End", "Speaker", "Start Time", "End Time", "Text"}
)

// WriteCSV writes the header and rows with CRLF line endings.
func WriteCSV(w io.Writer, rows []Row, includeSpeaker bool) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	head := header
	if includeSpeaker {
		head = speakerHeader
	}
	if err := cw.Write(head); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		record := []string{FormatClock(row.Bucket.Start), FormatClock(row.Bucket.End)}
		if includeSpeaker {
			record = append(record, row.Speaker)
		}
		record = append(record, FormatClock(row.Start), FormatClock(row.End), row.Text)

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeCSV renders rows to a byte slice
func EncodeCSV(rows []Row, includeSpeaker bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, includeSpeaker); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"SessionPulse/internal/models"
)

// LegacyRow is one session record exported with its inline
// scheduled-email-id map.
type LegacyRow struct {
	Line      int
	SessionID string
	IDs       models.ScheduledEmailIDs
}

// ParseLegacyRows parses a CSV from an io.Reader. The header must contain
// "session_id" and "scheduled_email_ids" columns (case-insensitive); other
// columns are ignored.
//
// Rows that cannot be decoded are skipped and reported together in the
// returned error, alongside the rows that could. maxRows limits how many
// data rows are parsed (excluding header).
func ParseLegacyRows(r io.Reader, maxRows int) ([]LegacyRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}

	sessionIdx, idsIdx := -1, -1
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "session_id":
			sessionIdx = i
		case "scheduled_email_ids":
			idsIdx = i
		}
	}
	if sessionIdx == -1 || idsIdx == -1 {
		return nil, errors.New("csv must contain session_id and scheduled_email_ids columns")
	}

	if maxRows <= 0 {
		maxRows = 10000
	}

	var (
		rows    = make([]LegacyRow, 0)
		skipped error
		line    = 1
	)
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return rows, err
		}
		if len(record) != len(headers) {
			skipped = multierror.Append(skipped, fmt.Errorf("line %d: expected %d fields, got %d", line, len(headers), len(record)))
			continue
		}

		sessionID := strings.TrimSpace(record[sessionIdx])
		if sessionID == "" {
			skipped = multierror.Append(skipped, fmt.Errorf("line %d: empty session_id", line))
			continue
		}

		ids, err := models.ParseScheduledEmailIDs(sessionID, record[idsIdx])
		if err != nil {
			skipped = multierror.Append(skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		rows = append(rows, LegacyRow{Line: line, SessionID: sessionID, IDs: ids})
	}

	return rows, skipped
}

// Package sheets persists leave and article rows to a Google Sheets workbook.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/sheets/v4"
)

// DateLayout is the wire format used for leave dates throughout the sheet.
const DateLayout = "02/01/2006"

const leaveStatusColumn = 7 // column H

type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	now           func() time.Time
	loc           *time.Location
}

type StoreOptions struct {
	Service       *sheets.Service
	SpreadsheetID string
	// Now overrides the clock, used by tests.
	Now func() time.Time
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("sheets service is required")
	}
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		svc:           opts.Service,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		now:           now,
		loc:           loc,
	}, nil
}

// Today returns the current date in the sheet's timezone, formatted for rows.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// AppendRow appends one row to the named worksheet. Values go through
// USER_ENTERED so dates and numbers are typed by the sheet, matching
// rows entered by hand.
func (s *Store) AppendRow(ctx context.Context, sheetName string, row []any) error {
	if strings.TrimSpace(sheetName) == "" {
		return fmt.Errorf("sheet name is required")
	}
	if len(row) == 0 {
		return fmt.Errorf("row is empty")
	}
	vr := &sheets.ValueRange{Values: [][]any{row}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, sheetName, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row to %s: %w", sheetName, err)
	}
	return nil
}

// DeleteLeaveRow removes the first row matching the employee and date pair,
// provided the leave is still cancellable: it must start today or later, or
// carry an UPCOMING status, and must not be REDEEMED. The returned message is
// meant to be relayed to the requester verbatim.
func (s *Store) DeleteLeaveRow(ctx context.Context, sheetName, employee, fromDate, toDate string) (bool, string, error) {
	if strings.TrimSpace(sheetName) == "" {
		return false, "", fmt.Errorf("sheet name is required")
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheetName).Context(ctx).Do()
	if err != nil {
		return false, "", fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(resp.Values) <= 1 {
		return false, "No leave entries found in the sheet.", nil
	}

	fromDT, err := time.ParseInLocation(DateLayout, strings.TrimSpace(fromDate), s.loc)
	if err != nil {
		return false, "", fmt.Errorf("parse from date %q: %w", fromDate, err)
	}
	todayDT, err := time.ParseInLocation(DateLayout, s.Today(), s.loc)
	if err != nil {
		return false, "", fmt.Errorf("parse today: %w", err)
	}

	rowIndex := -1
	for i, row := range resp.Values {
		if i == 0 {
			continue
		}
		if len(row) <= leaveStatusColumn {
			continue
		}
		if cell(row, 1) != strings.TrimSpace(employee) ||
			cell(row, 3) != strings.TrimSpace(fromDate) ||
			cell(row, 4) != strings.TrimSpace(toDate) {
			continue
		}
		status := strings.ToUpper(cell(row, leaveStatusColumn))
		if status == "REDEEMED" {
			return false, "Cannot cancel a past leave (status: REDEEMED).", nil
		}
		if !fromDT.Before(todayDT) || status == "UPCOMING" {
			rowIndex = i
			break
		}
	}
	if rowIndex < 0 {
		return false, "No matching leave found to cancel (must be today or upcoming, not redeemed).", nil
	}

	gid, err := s.sheetID(ctx, sheetName)
	if err != nil {
		return false, "", err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    gid,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, "", fmt.Errorf("delete row from %s: %w", sheetName, err)
	}
	return true, fmt.Sprintf("Leave for %s to %s has been cancelled.", strings.TrimSpace(fromDate), strings.TrimSpace(toDate)), nil
}

func (s *Store) sheetID(ctx context.Context, sheetName string) (int64, error) {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("worksheet %q not found", sheetName)
}

func cell(row []any, idx int) string {
	if idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return strings.TrimSpace(s)
}

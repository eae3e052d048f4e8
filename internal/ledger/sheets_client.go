package ledger

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsClient implements Client against the Google Sheets API.
type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsClient builds a Sheets-backed ledger client. Credentials are taken
// from inline service-account JSON when provided, otherwise from a key file;
// with neither set, application default credentials apply.
func NewSheetsClient(ctx context.Context, opts Options) (*SheetsClient, error) {
	if opts.SpreadsheetID == "" {
		return nil, ErrMissingSpreadsheetID
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
	}, nil
}

// Append adds one row to the bottom of the given table.
func (c *SheetsClient) Append(ctx context.Context, table string, row []any) error {
	body := &sheets.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, table, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", table, err)
	}
	return nil
}

// Read returns every populated row of the given table.
func (c *SheetsClient) Read(ctx context.Context, table string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, table).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return resp.Values, nil
}

// Update overwrites the given row range in place.
func (c *SheetsClient) Update(ctx context.Context, cellRange string, row []any) error {
	body := &sheets.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, cellRange, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", cellRange, err)
	}
	return nil
}

// Probe verifies the spreadsheet is reachable with the configured credentials.
func (c *SheetsClient) Probe(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("spreadsheetId").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("probe spreadsheet: %w", err)
	}
	return nil
}

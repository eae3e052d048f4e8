package ledger

import (
	"context"
	"errors"
)

// Client defines the minimal contract the syncer requires from the tabular
// ledger backend. Table arguments are A1-notation ranges such as
// "Transfer chat!A:F"; Update targets an exact row range.
type Client interface {
	Append(ctx context.Context, table string, row []any) error
	Read(ctx context.Context, table string) ([][]any, error)
	Update(ctx context.Context, cellRange string, row []any) error
	Probe(ctx context.Context) error
}

// Options configures a ledger client implementation.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

// ErrMissingSpreadsheetID indicates the spreadsheet ID is not provided.
var ErrMissingSpreadsheetID = errors.New("spreadsheet ID is required")

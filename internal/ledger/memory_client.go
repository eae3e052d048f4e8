package ledger

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// MemoryClient is an in-memory implementation of the Client interface used for
// unit testing sync logic without a live spreadsheet. Rows are keyed by sheet
// name, so appends through "Sheet!A:D" and updates through "Sheet!A3:D3" land
// on the same table.
type MemoryClient struct {
	mu        sync.Mutex
	tables    map[string][][]any
	appendErr error
	readErr   error
	updateErr error
	probeErr  error

	appendCalls []TableOp
	updateCalls []TableOp
}

// TableOp captures a single mutation issued against the client.
type TableOp struct {
	Range string
	Row   []any
}

// NewMemoryClient instantiates an empty in-memory ledger.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{tables: make(map[string][][]any)}
}

// WithAppendError forces Append to fail with the supplied error.
func (m *MemoryClient) WithAppendError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
	return m
}

// WithReadError forces Read to fail with the supplied error.
func (m *MemoryClient) WithReadError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
	return m
}

// WithUpdateError forces Update to fail with the supplied error.
func (m *MemoryClient) WithUpdateError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
	return m
}

// WithProbeError forces Probe to return the supplied error.
func (m *MemoryClient) WithProbeError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
	return m
}

// Seed replaces the contents of a sheet. Useful for pre-populating summary
// tables with a header row.
func (m *MemoryClient) Seed(sheet string, rows [][]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[sheet] = cloneRows(rows)
}

func (m *MemoryClient) Append(_ context.Context, table string, row []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	sheet, _ := splitRange(table)
	m.tables[sheet] = append(m.tables[sheet], append([]any(nil), row...))
	m.appendCalls = append(m.appendCalls, TableOp{Range: table, Row: append([]any(nil), row...)})
	return nil
}

func (m *MemoryClient) Read(_ context.Context, table string) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, m.readErr
	}
	sheet, _ := splitRange(table)
	return cloneRows(m.tables[sheet]), nil
}

func (m *MemoryClient) Update(_ context.Context, cellRange string, row []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	sheet, cells := splitRange(cellRange)
	idx := startRow(cells) - 1
	if idx >= 0 && idx < len(m.tables[sheet]) {
		m.tables[sheet][idx] = append([]any(nil), row...)
	}
	m.updateCalls = append(m.updateCalls, TableOp{Range: cellRange, Row: append([]any(nil), row...)})
	return nil
}

func (m *MemoryClient) Probe(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probeErr
}

// Rows returns a snapshot of a sheet's contents.
func (m *MemoryClient) Rows(sheet string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.tables[sheet])
}

// AppendCalls returns a snapshot of issued appends.
func (m *MemoryClient) AppendCalls() []TableOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TableOp(nil), m.appendCalls...)
}

// UpdateCalls returns a snapshot of issued updates.
func (m *MemoryClient) UpdateCalls() []TableOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TableOp(nil), m.updateCalls...)
}

func cloneRows(rows [][]any) [][]any {
	if rows == nil {
		return nil
	}
	dst := make([][]any, len(rows))
	for i, row := range rows {
		dst[i] = append([]any(nil), row...)
	}
	return dst
}

func splitRange(ref string) (sheet, cells string) {
	if i := strings.Index(ref, "!"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// startRow extracts the leading row number from a cell reference such as
// "A3:D3". Column-only ranges yield 0.
func startRow(cells string) int {
	start := cells
	if i := strings.Index(cells, ":"); i >= 0 {
		start = cells[:i]
	}
	digits := strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

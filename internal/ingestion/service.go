package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/rollup/internal/domain"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Required column sets of the two input relations. The header mapping is
// resolved once per file; a missing column is a schema mismatch and fatal.
var (
	invoiceColumns = []string{"legal_entity", "counter_party", "rating", "status", "value"}
	partyColumns   = []string{"counter_party", "tier"}
)

// Service parses uploaded tabular files into the typed input relations.
type Service struct{}

// NewService creates a new ingestion service.
func NewService() *Service {
	return &Service{}
}

// RowError records a data row that could not be coerced.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	TotalRows   int        `json:"totalRows"`
	ValidRows   int        `json:"validRows"`
	InvalidRows int        `json:"invalidRows"`
	Errors      []RowError `json:"errors,omitempty"`
}

type tableData struct {
	headers []string
	rows    [][]string
	// wide maps a data row index to its original cell count when the row
	// carried non-blank cells beyond the header width.
	wide map[int]int
}

// ParseInvoices reads the invoice relation from a CSV or XLSX upload.
// Rows that fail coercion are counted and reported but do not abort the
// parse; a missing required column does.
func (s *Service) ParseInvoices(fileName string, data io.Reader) ([]domain.Invoice, Summary, error) {
	table, summary, err := readTable(fileName, data, invoiceColumns)
	if err != nil {
		return nil, summary, err
	}

	index := columnIndex(table.headers)
	invoices := make([]domain.Invoice, 0, len(table.rows))
	for rowIdx, row := range table.rows {
		rowNumber := rowIdx + 2 // include header row (1-based)

		if width, ok := table.wide[rowIdx]; ok {
			summary.rowError(rowNumber, fmt.Errorf("row has %d cells, header has %d", width, len(table.headers)))
			continue
		}

		rating, err := coerceInt(cellAt(row, index["rating"]))
		if err != nil {
			summary.rowError(rowNumber, fmt.Errorf("column rating: %w", err))
			continue
		}
		status, err := domain.ParseInvoiceStatus(cellAt(row, index["status"]))
		if err != nil {
			summary.rowError(rowNumber, fmt.Errorf("column status: %w", err))
			continue
		}
		value, err := coerceInt(cellAt(row, index["value"]))
		if err != nil {
			summary.rowError(rowNumber, fmt.Errorf("column value: %w", err))
			continue
		}

		invoices = append(invoices, domain.Invoice{
			LegalEntity:  cellAt(row, index["legal_entity"]),
			CounterParty: cellAt(row, index["counter_party"]),
			Rating:       rating,
			Status:       status,
			Value:        value,
		})
		summary.ValidRows++
	}
	return invoices, summary, nil
}

// ParseParties reads the counter-party/tier side relation.
func (s *Service) ParseParties(fileName string, data io.Reader) ([]domain.Party, Summary, error) {
	table, summary, err := readTable(fileName, data, partyColumns)
	if err != nil {
		return nil, summary, err
	}

	index := columnIndex(table.headers)
	parties := make([]domain.Party, 0, len(table.rows))
	for rowIdx, row := range table.rows {
		rowNumber := rowIdx + 2

		if width, ok := table.wide[rowIdx]; ok {
			summary.rowError(rowNumber, fmt.Errorf("row has %d cells, header has %d", width, len(table.headers)))
			continue
		}

		tier, err := coerceInt(cellAt(row, index["tier"]))
		if err != nil {
			summary.rowError(rowNumber, fmt.Errorf("column tier: %w", err))
			continue
		}

		parties = append(parties, domain.Party{
			CounterParty: cellAt(row, index["counter_party"]),
			Tier:         tier,
		})
		summary.ValidRows++
	}
	return parties, summary, nil
}

func (s *Summary) rowError(rowNumber int, err error) {
	s.InvalidRows++
	s.Errors = append(s.Errors, RowError{RowNumber: rowNumber, Message: err.Error()})
}

func readTable(fileName string, data io.Reader, required []string) (tableData, Summary, error) {
	var summary Summary
	if data == nil {
		return tableData{}, summary, errors.New("data reader is required")
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return tableData{}, summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return tableData{}, summary, errors.New("file is empty")
	}

	table, err := parseTable(fileName, payload)
	if err != nil {
		return tableData{}, summary, err
	}
	if len(table.headers) == 0 {
		return tableData{}, summary, errors.New("no header row detected")
	}

	index := columnIndex(table.headers)
	for _, column := range required {
		if _, ok := index[column]; !ok {
			return tableData{}, summary, &domain.SchemaMismatchError{
				Relation: fileName,
				Column:   column,
			}
		}
	}

	summary.TotalRows = len(table.rows)
	return table, summary, nil
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", "":
		return parseCSV(payload)
	case ".xlsx", ".xlsm":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows)
}

func normalizeTable(records [][]string) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	for _, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}
	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	wide := make(map[int]int)
	for i := range dataRows {
		if len(dataRows[i]) > len(headers) && len(cleanRow(dataRows[i][len(headers):])) > 0 {
			wide[i] = len(dataRows[i])
		}
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	return tableData{headers: headers, rows: dataRows, wide: wide}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		headers[idx] = name
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func columnIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		if _, ok := index[header]; !ok {
			index[header] = i
		}
	}
	return index
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func coerceInt(raw string) (int64, error) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && math.Mod(f, 1) == 0 {
		return int64(f), nil
	}
	return 0, fmt.Errorf("unable to coerce %q to integer", raw)
}

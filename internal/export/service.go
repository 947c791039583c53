package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/rollup/internal/domain"
)

// Format selects the output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a requested format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Result describes a written output file.
type Result struct {
	FilePath     string
	RowsExported int
	BytesWritten int64
}

// Service writes merged rollup relations to files.
type Service struct {
	exportDir string
	now       func() time.Time
}

// Option customises the export service.
type Option func(*Service)

// WithExportDirectory overrides where output files land.
func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// NewService creates an export service writing under the OS temp directory
// unless configured otherwise.
func NewService(opts ...Option) *Service {
	service := &Service{
		exportDir: filepath.Join(os.TempDir(), "rollup-exports"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Write persists the relation in the requested format and returns the file
// metadata. Cell values render with fmt; nil cells render empty.
func (s *Service) Write(relation domain.Relation, format Format) (Result, error) {
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create export directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.%s", relation.Name, s.now().UTC().Format("20060102T150405Z"), format)
	path := filepath.Join(s.exportDir, name)

	switch format {
	case FormatCSV:
		return s.writeCSV(relation, path)
	case FormatXLSX:
		return s.writeXLSX(relation, path)
	default:
		return Result{}, fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSVFile writes the relation as CSV to an explicit path; used by the
// batch CLI where the caller owns the output location.
func (s *Service) WriteCSVFile(relation domain.Relation, path string) (Result, error) {
	return s.writeCSV(relation, path)
}

func (s *Service) writeCSV(relation domain.Relation, path string) (Result, error) {
	file, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewWriter(file)
	writer := csv.NewWriter(buffered)

	if err := writer.Write(relation.Columns); err != nil {
		return Result{}, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range relation.Rows {
		record := make([]string, len(relation.Columns))
		for i, value := range relation.Project(row, relation.Columns) {
			record[i] = renderCell(value)
		}
		if err := writer.Write(record); err != nil {
			return Result{}, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return Result{}, fmt.Errorf("failed to flush csv: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return Result{}, fmt.Errorf("failed to flush output: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat output: %w", err)
	}
	return Result{FilePath: path, RowsExported: len(relation.Rows), BytesWritten: info.Size()}, nil
}

func (s *Service) writeXLSX(relation domain.Relation, path string) (Result, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	header := make([]any, len(relation.Columns))
	for i, column := range relation.Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return Result{}, fmt.Errorf("failed to write header: %w", err)
	}

	for rowIdx, row := range relation.Rows {
		record := make([]any, len(relation.Columns))
		for i, value := range relation.Project(row, relation.Columns) {
			if value == nil {
				record[i] = ""
				continue
			}
			record[i] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return Result{}, fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			return Result{}, fmt.Errorf("failed to write row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return Result{}, fmt.Errorf("failed to save workbook: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat output: %w", err)
	}
	return Result{FilePath: path, RowsExported: len(relation.Rows), BytesWritten: info.Size()}, nil
}

func renderCell(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/rpattn/rollup/internal/export"
	"github.com/rpattn/rollup/internal/ingestion"
	"github.com/rpattn/rollup/internal/rollup"
)

// Batch entry point: reads the two input relations from disk, computes the
// rollup, and writes the merged output CSV.
func main() {
	invoicesPath := flag.String("invoices", "inputs/dataset1.csv", "path to the invoice relation")
	partiesPath := flag.String("parties", "inputs/dataset2.csv", "path to the counter-party tier relation")
	outputPath := flag.String("out", "outputs/rollup.csv", "path of the output CSV")
	flag.Parse()

	ingestService := ingestion.NewService()

	invoices, invoiceSummary, err := parseFile(ingestService.ParseInvoices, *invoicesPath)
	if err != nil {
		log.Fatalf("Failed to read invoices: %v", err)
	}
	parties, partySummary, err := parseFile(ingestService.ParseParties, *partiesPath)
	if err != nil {
		log.Fatalf("Failed to read parties: %v", err)
	}
	log.Printf("[ROLLUP] parsed %d/%d invoice rows, %d/%d party rows",
		invoiceSummary.ValidRows, invoiceSummary.TotalRows,
		partySummary.ValidRows, partySummary.TotalRows)
	for _, rowErr := range append(invoiceSummary.Errors, partySummary.Errors...) {
		log.Printf("[ROLLUP] skipped row %d: %s", rowErr.RowNumber, rowErr.Message)
	}

	merged, diagnostics, err := rollup.NewEngine().Run(context.Background(), invoices, parties)
	if err != nil {
		log.Fatalf("Rollup failed: %v", err)
	}
	for _, diagnostic := range diagnostics {
		log.Printf("[ROLLUP] %s %s (%s): %s", diagnostic.Level, diagnostic.Code, diagnostic.Pass, diagnostic.Message)
	}

	result, err := export.NewService().WriteCSVFile(merged, *outputPath)
	if err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	log.Printf("[ROLLUP] wrote %d rows (%d bytes) to %s", result.RowsExported, result.BytesWritten, result.FilePath)
}

func parseFile[T any](parse func(string, io.Reader) ([]T, ingestion.Summary, error), path string) ([]T, ingestion.Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ingestion.Summary{}, err
	}
	defer file.Close()
	return parse(path, file)
}

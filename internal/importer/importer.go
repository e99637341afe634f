package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/BordignonMD/anti-fraud/internal/engine"
)

// requiredColumns are the CSV headers a transaction file must carry, in any
// order.
var requiredColumns = []string{
	"transaction_id",
	"merchant_id",
	"user_id",
	"card_number",
	"transaction_date",
	"transaction_amount",
	"device_id",
	"has_cbk",
}

// RowError records one skipped row and why.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Summary reports the outcome of one import run.
type Summary struct {
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Importer feeds CSV rows through duplicate matching, the rule pipeline and
// persistence, one row at a time.
//
// Rows are processed strictly in file order and every row's decision is
// persisted before the next row is evaluated, so a row early in the file
// participates in the velocity and amount aggregates seen by later rows.
// A failed row is skipped, never retried, and never aborts the batch.
type Importer struct {
	svc *engine.Service
	log zerolog.Logger
}

// New creates an importer over the given decision service.
func New(svc *engine.Service, log zerolog.Logger) *Importer {
	return &Importer{svc: svc, log: log}
}

// ImportSource imports from a local file path or a gs:// URI.
func (i *Importer) ImportSource(ctx context.Context, source string) (*Summary, error) {
	if strings.HasPrefix(source, "gs://") {
		data, err := fetchFromGCS(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("ImportSource: %w", err)
		}
		return i.Import(ctx, strings.NewReader(string(data)))
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("ImportSource: opening %s: %w", source, err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// Import reads a headered CSV stream and processes each row independently.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("Import: reading header: %w", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}

	summary := &Summary{}
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed CSV row: skip it, keep the batch going.
			summary.Rows++
			i.skipRow(summary, line, err)
			continue
		}

		summary.Rows++
		if err := i.importRow(ctx, columns, record); err != nil {
			i.skipRow(summary, line, err)
			continue
		}
		summary.Imported++
	}

	i.log.Info().
		Int("rows", summary.Rows).
		Int("imported", summary.Imported).
		Int("skipped", summary.Skipped).
		Msg("Import finished")

	return summary, nil
}

// importRow decides and persists a single row. The decision is applied before
// Save so later rows see it in their aggregates.
func (i *Importer) importRow(ctx context.Context, columns map[string]int, record []string) error {
	tx, err := parseRow(columns, record)
	if err != nil {
		return err
	}

	if _, err := i.svc.Decide(ctx, tx); err != nil {
		return err
	}

	return i.svc.Save(ctx, tx)
}

func (i *Importer) skipRow(summary *Summary, line int, err error) {
	summary.Skipped++
	summary.Errors = append(summary.Errors, RowError{Line: line, Err: err.Error()})
	i.log.Warn().Int("line", line).Err(err).Msg("Skipping row")
}

// mapColumns resolves header names to indices and checks every required
// column is present.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return columns, nil
}

// parseRow converts one CSV record into an undecided transaction.
func parseRow(columns map[string]int, record []string) (*engine.Transaction, error) {
	field := func(name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	transactionID, err := parseInt("transaction_id", field("transaction_id"))
	if err != nil {
		return nil, err
	}
	merchantID, err := parseInt("merchant_id", field("merchant_id"))
	if err != nil {
		return nil, err
	}
	userID, err := parseInt("user_id", field("user_id"))
	if err != nil {
		return nil, err
	}
	deviceID, err := parseInt("device_id", field("device_id"))
	if err != nil {
		return nil, err
	}

	date, err := engine.ParseDate(field("transaction_date"))
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(field("transaction_amount"))
	if err != nil {
		return nil, &engine.ValidationError{Field: "transaction_amount", Err: err}
	}

	hasCBK, err := strconv.ParseBool(strings.ToLower(field("has_cbk")))
	if err != nil {
		return nil, &engine.ValidationError{Field: "has_cbk", Err: err}
	}

	tx := engine.NewTransaction(transactionID, merchantID, userID, deviceID, field("card_number"), date, amount, hasCBK)
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

func parseInt(name, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &engine.ValidationError{Field: name, Err: err}
	}
	return n, nil
}

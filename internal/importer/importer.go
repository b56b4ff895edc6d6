// Package importer reads bill CSV files, the format produced by Export and by
// hand-maintained spreadsheets, and turns rows into bill create params.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/duetrack/duetrack/internal/bill"
	enc "github.com/duetrack/duetrack/internal/encoding"
)

// Required header columns. The remaining columns are optional and default the
// same way the create endpoint does.
var requiredCols = []string{"name", "frequency", "due_date"}

// Parser reads a bill CSV. Columns are matched by header name, so column
// order does not matter and unknown columns are ignored.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]bill.CreateParams, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	cols, err := indexHeader(rows[0])
	if err != nil {
		return nil, err
	}

	return parseRows(cols, rows[1:])
}

// colIndex maps lowercased header names to their column index.
type colIndex map[string]int

func indexHeader(header []string) (colIndex, error) {
	cols := make(colIndex)

	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name != "" {
			cols[name] = i
		}
	}

	for _, name := range requiredCols {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	return cols, nil
}

func parseRows(cols colIndex, rows [][]string) ([]bill.CreateParams, error) {
	var params []bill.CreateParams

	for i, row := range rows {
		rowNum := i + 2 // 1-based, after the header

		if isBlank(row) {
			continue
		}

		p, err := parseRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		params = append(params, p)
	}

	return params, nil
}

func parseRow(cols colIndex, row []string) (bill.CreateParams, error) {
	var p bill.CreateParams

	p.Name = cellValue(row, cols, "name")
	if p.Name == "" {
		return p, fmt.Errorf("missing name")
	}

	p.FrequencyKind = cellValue(row, cols, "frequency")
	p.ScheduleMode = cellValue(row, cols, "mode")

	if config := cellValue(row, cols, "schedule_config"); config != "" {
		p.ScheduleConfig = []byte(config)
	}

	dueDate := cellValue(row, cols, "due_date")

	due, err := time.Parse(time.DateOnly, dueDate)
	if err != nil {
		return p, fmt.Errorf("invalid due_date %q", dueDate)
	}

	p.DueDate = due

	p.IsVariable = parseBool(cellValue(row, cols, "variable"))
	p.AutoPay = parseBool(cellValue(row, cols, "auto_pay"))

	if s := cellValue(row, cols, "amount"); s != "" {
		cents, err := parseAmountCents(s)
		if err != nil {
			return p, fmt.Errorf("invalid amount %q", s)
		}

		p.Amount = &cents
	}

	p.Kind = bill.Kind(cellValue(row, cols, "kind"))
	p.Account = cellValue(row, cols, "account")
	p.Category = cellValue(row, cols, "category")
	p.Notes = cellValue(row, cols, "notes")
	p.Icon = cellValue(row, cols, "icon")

	return p, nil
}

// parseAmountCents parses a decimal amount string into cents. Accepts both
// "1234.56" and the European "1.234,56".
func parseAmountCents(s string) (int64, error) {
	clean := strings.ReplaceAll(s, " ", "")

	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, err
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))

	return err == nil && b
}

func cellValue(row []string, cols colIndex, name string) string {
	idx, ok := cols[name]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

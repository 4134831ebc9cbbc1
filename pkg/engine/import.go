package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
	"github.com/Jochuuuu/PVSProyectoB/pkg/sqlfront"
)

func (e *Engine) execImportCSV(stmt string) Result {
	imp, err := sqlfront.ParseImportCSV(stmt)
	if err != nil {
		return errorResult("import_csv", err)
	}
	m, ok := e.tables[imp.Table]
	if !ok {
		return errorResult("import_csv", fmt.Errorf("engine: unknown table %q", imp.Table))
	}
	f, err := os.Open(imp.Path)
	if err != nil {
		return errorResult("import_csv", fmt.Errorf("engine: open CSV %s: %w", imp.Path, err))
	}
	defer f.Close()

	cr, err := sqlfront.OpenCSVReader(f, imp)
	if err != nil {
		return errorResult("import_csv", err)
	}

	schema := m.Schema()
	var headers []string
	if !imp.NoHeader {
		headers, err = cr.Read()
		if err != nil {
			return errorResult("import_csv", fmt.Errorf("engine: read CSV header: %w", err))
		}
	} else {
		for _, a := range schema.Attributes {
			headers = append(headers, a.Name)
		}
	}
	mapping := sqlfront.CreateColumnMapping(headers, schema)

	pkPos := schema.AttributeIndex(schema.PrimaryKey)
	affected := 0
	var lastErr error
	var recordNumbers []record.RecordNumber
	var succeededRows []int
	var failedRows []ImportRowError
	rowIndex := -1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		if err != nil {
			lastErr = err
			failedRows = append(failedRows, ImportRowError{Index: rowIndex, Message: err.Error()})
			break
		}
		rec := make(record.Record, len(schema.Attributes))
		for i, a := range schema.Attributes {
			rec[i] = record.DefaultValue(a.Type, a.Size)
		}
		pkMapped := false
		pkPresent := false
		for csvCol, attrName := range mapping {
			if csvCol >= len(row) {
				continue
			}
			pos := schema.AttributeIndex(attrName)
			if pos == -1 {
				continue
			}
			v, present, err := sqlfront.ConvertCSVValue(row[csvCol], schema.Attributes[pos].Type)
			if err != nil {
				continue
			}
			rec[pos] = v
			if pos == pkPos {
				pkMapped = true
				pkPresent = present
			}
		}
		if pkPos != -1 && (!pkMapped || !pkPresent) {
			// PK column unmapped for this row, or its cell absent or
			// unconvertible: skip row (SPEC_FULL.md §6)
			failedRows = append(failedRows, ImportRowError{Index: rowIndex, Message: "missing primary key value"})
			continue
		}
		n, err := m.Insert(rec)
		if err != nil {
			lastErr = err
			failedRows = append(failedRows, ImportRowError{Index: rowIndex, Message: err.Error()})
			continue
		}
		recordNumbers = append(recordNumbers, n)
		succeededRows = append(succeededRows, rowIndex)
		affected++
	}
	if affected == 0 && lastErr != nil {
		return errorResult("import_csv", lastErr)
	}
	return Result{
		Operation:     "import_csv",
		Affected:      affected,
		RecordNumbers: recordNumbers,
		FailedCount:   len(failedRows),
		SucceededRows: succeededRows,
		FailedRows:    failedRows,
	}
}

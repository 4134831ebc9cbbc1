package engine

import (
	"time"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
	"github.com/Jochuuuu/PVSProyectoB/pkg/table"
)

// Result is the JSON envelope returned by Exec for one statement,
// mirroring the shapes main.py's /sql endpoint returns (SPEC_FULL.md §9).
// INSERT reports every assigned record number plus the rows that
// produced them; DELETE reports every deleted record number; IMPORT
// reports per-row success/failure indices alongside the aggregate
// counts (SPEC_FULL.md §6).
type Result struct {
	Operation     string                   `json:"operation"`
	Error         bool                     `json:"error"`
	Message       string                   `json:"message,omitempty"`
	Columns       []string                 `json:"columns,omitempty"`
	Rows          []map[string]interface{} `json:"rows,omitempty"`
	Affected      int                      `json:"affected,omitempty"`
	RecordNum     int32                    `json:"record_number,omitempty"`
	RecordNumbers []record.RecordNumber    `json:"record_numbers,omitempty"`
	InputRows     []map[string]interface{} `json:"input_rows,omitempty"`
	FailedCount   int                      `json:"failed_count,omitempty"`
	SucceededRows []int                    `json:"succeeded_row_indices,omitempty"`
	FailedRows    []ImportRowError         `json:"failed_row_indices,omitempty"`
}

// ImportRowError records which input row (by zero-based index) failed
// to import and why, per SPEC_FULL.md §6's "per-row success/failure
// indices" requirement.
type ImportRowError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func errorResult(op string, err error) Result {
	return Result{Operation: op, Error: true, Message: err.Error()}
}

// recordToJSON renders one full record by attribute name, used to echo
// an INSERT's input row back in the result envelope (SPEC_FULL.md §6).
func recordToJSON(rec record.Record, schema record.Schema) map[string]interface{} {
	row := map[string]interface{}{}
	for i, a := range schema.Attributes {
		row[a.Name] = valueToJSON(rec[i], a.Type)
	}
	return row
}

func rowsToJSON(res table.Result, schema record.Schema) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := map[string]interface{}{}
		for i, col := range res.Columns {
			pos := schema.AttributeIndex(col)
			var t record.DataType
			if pos != -1 {
				t = schema.Attributes[pos].Type
			}
			row[col] = valueToJSON(r[i], t)
		}
		rows = append(rows, row)
	}
	return rows
}

// valueToJSON renders a record.Value per the external interface in
// spec.md §6: POINT becomes {type, x, y, string_representation}, DATE
// becomes both the raw day count and an RFC3339 string (SPEC_FULL.md §3).
func valueToJSON(v record.Value, t record.DataType) interface{} {
	switch t {
	case record.TypePoint:
		p, ok := v.(point.Point)
		if !ok {
			return v
		}
		return map[string]interface{}{
			"type":               "POINT",
			"x":                  p.X,
			"y":                  p.Y,
			"string_representation": p.String(),
		}
	case record.TypeDate:
		days, ok := v.(int32)
		if !ok {
			return v
		}
		tm := time.Unix(int64(days)*86400, 0).UTC()
		return map[string]interface{}{
			"unix_day": days,
			"rfc3339":  tm.Format(time.RFC3339),
		}
	default:
		return v
	}
}

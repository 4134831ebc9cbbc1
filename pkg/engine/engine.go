// Package engine is the top-level entry point: an explicit, owned
// handle over a directory of tables (replacing the original's
// module-level global singleton), exposing Exec(sql) over the pkg/sqlfront parser and
// pkg/table manager.
package engine

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
	"github.com/Jochuuuu/PVSProyectoB/pkg/sqlfront"
	"github.com/Jochuuuu/PVSProyectoB/pkg/table"
)

// ErrDirectoryLocked is returned by Open when another process already
// holds the engine open against the same directory.
var ErrDirectoryLocked = errors.New("engine: directory is locked by another process")

// Engine owns every open table under one base directory.
type Engine struct {
	dir    string
	tables map[string]*table.Manager
	lock   *os.File
}

// Open opens (creating if absent) an engine rooted at dir, acquiring
// the single-writer advisory lock described in SPEC_FULL.md §3.
func Open(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: mkdir %s: %w", dir, err)
	}
	lockFile, err := acquireLock(filepath.Join(dir, ".lock"))
	if err != nil {
		return nil, err
	}
	e := &Engine{dir: dir, tables: map[string]*table.Manager{}, lock: lockFile}
	if err := e.loadExistingTables(); err != nil {
		releaseLock(lockFile)
		return nil, err
	}
	return e, nil
}

// loadExistingTables scans dir for *_meta.json files with a matching
// .bin file and opens each as a table, mirroring sql.py's
// load_existing_tables.
func (e *Engine) loadExistingTables() error {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasSuffix(name, "_meta.json") {
			continue
		}
		tableName := strings.TrimSuffix(name, "_meta.json")
		if _, err := os.Stat(filepath.Join(e.dir, tableName+".bin")); err != nil {
			log.Printf("engine: skipping table %q: missing data file", tableName)
			continue
		}
		m, err := table.Open(e.dir, tableName)
		if err != nil {
			return fmt.Errorf("engine: open table %q: %w", tableName, err)
		}
		e.tables[tableName] = m
	}
	return nil
}

// Close closes every open table and releases the directory lock.
func (e *Engine) Close() error {
	var firstErr error
	for _, m := range e.tables {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := releaseLock(e.lock); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Exec runs every statement in sql in order and returns one Result per
// statement.
func (e *Engine) Exec(sql string) []Result {
	var out []Result
	for _, stmt := range sqlfront.Split(sqlfront.Clean(sql)) {
		out = append(out, e.execOne(stmt))
	}
	return out
}

func (e *Engine) execOne(stmt string) Result {
	switch sqlfront.Classify(stmt) {
	case sqlfront.OpCreateTable:
		return e.execCreateTable(stmt)
	case sqlfront.OpInsert:
		return e.execInsert(stmt)
	case sqlfront.OpSelect:
		return e.execSelect(stmt)
	case sqlfront.OpDelete:
		return e.execDelete(stmt)
	case sqlfront.OpImportCSV:
		return e.execImportCSV(stmt)
	default:
		return errorResult("unknown", fmt.Errorf("engine: could not classify statement %q", stmt))
	}
}

func (e *Engine) execCreateTable(stmt string) Result {
	schema, err := sqlfront.ParseCreateTable(stmt)
	if err != nil {
		return errorResult("create_table", err)
	}
	m, err := table.Create(e.dir, schema)
	if err != nil {
		return errorResult("create_table", err)
	}
	e.tables[schema.Table] = m
	return Result{Operation: "create_table", Affected: 1}
}

func (e *Engine) execInsert(stmt string) Result {
	ins, err := sqlfront.ParseInsert(stmt)
	if err != nil {
		return errorResult("insert", err)
	}
	m, ok := e.tables[ins.Table]
	if !ok {
		return errorResult("insert", fmt.Errorf("engine: unknown table %q", ins.Table))
	}
	schema := m.Schema()
	cols := ins.Columns
	if len(cols) == 0 {
		for _, a := range schema.Attributes {
			cols = append(cols, a.Name)
		}
	}
	affected := 0
	var lastErr error
	var lastNum int32
	var recordNumbers []record.RecordNumber
	var inputRows []map[string]interface{}
	for _, row := range ins.Rows {
		rec := make(record.Record, len(schema.Attributes))
		for i, a := range schema.Attributes {
			rec[i] = record.DefaultValue(a.Type, a.Size)
		}
		var rowErr error
		for i, col := range cols {
			if i >= len(row) {
				continue
			}
			pos := schema.AttributeIndex(col)
			if pos == -1 {
				rowErr = fmt.Errorf("engine: unknown column %q", col)
				continue
			}
			v, err := sqlfront.ConvertLiteral(row[i], schema.Attributes[pos].Type)
			if err != nil {
				rowErr = err
				continue
			}
			rec[pos] = v
		}
		if rowErr != nil {
			lastErr = rowErr
			continue
		}
		n, err := m.Insert(rec)
		if err != nil {
			lastErr = err
			continue
		}
		lastNum = int32(n)
		recordNumbers = append(recordNumbers, n)
		inputRows = append(inputRows, recordToJSON(rec, schema))
		affected++
	}
	if affected == 0 && lastErr != nil {
		return errorResult("insert", lastErr)
	}
	return Result{
		Operation:     "insert",
		Affected:      affected,
		RecordNum:     lastNum,
		RecordNumbers: recordNumbers,
		InputRows:     inputRows,
	}
}

func (e *Engine) execSelect(stmt string) Result {
	sel, err := sqlfront.ParseSelect(stmt)
	if err != nil {
		return errorResult("select", err)
	}
	m, ok := e.tables[sel.Table]
	if !ok {
		return errorResult("select", fmt.Errorf("engine: unknown table %q", sel.Table))
	}
	schema := m.Schema()
	w, err := sqlfront.ParseWhere(sel.Where, schema)
	if err != nil {
		return errorResult("select", err)
	}
	cols := sel.Columns
	if len(cols) == 1 && cols[0] == "*" {
		cols = nil
	}
	res, err := m.Select(w.Exact, w.Ranges, w.Spatial, cols)
	if err != nil {
		return errorResult("select", err)
	}
	return Result{
		Operation: "select",
		Columns:   res.Columns,
		Rows:      rowsToJSON(res, schema),
		Affected:  len(res.Rows),
	}
}

func (e *Engine) execDelete(stmt string) Result {
	del, err := sqlfront.ParseDelete(stmt)
	if err != nil {
		return errorResult("delete", err)
	}
	m, ok := e.tables[del.Table]
	if !ok {
		return errorResult("delete", fmt.Errorf("engine: unknown table %q", del.Table))
	}
	if strings.TrimSpace(del.Where) == "" {
		return errorResult("delete", table.ErrDeleteRequiresFilter)
	}
	w, err := sqlfront.ParseWhere(del.Where, m.Schema())
	if err != nil {
		return errorResult("delete", err)
	}
	deleted, err := m.Delete(w.Exact, w.Ranges, w.Spatial)
	if err != nil {
		return errorResult("delete", err)
	}
	return Result{Operation: "delete", Affected: len(deleted), RecordNumbers: deleted}
}

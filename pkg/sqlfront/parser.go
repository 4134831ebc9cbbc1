package sqlfront

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

// attrPattern mirrors sql.py's CREATE TABLE attribute regex:
// name type [PRIMARY KEY|KEY] [INDEX kind] [SEQ]. SEQ is accepted and
// discarded for parity with sql.py's attribute_pattern, which never
// gives it semantics either (no auto-increment support exists).
var attrPattern = regexp.MustCompile(
	`(?i)^(\w+)\s+([A-Za-z_][A-Za-z_\d\[\]]*)(?:\s+(PRIMARY\s+KEY|KEY))?(?:\s+INDEX\s+(\w+))?(?:\s+SEQ)?\s*$`,
)

var createTablePattern = regexp.MustCompile(`(?is)^CREATE\s+TABLE\s+(\w+)\s*\((.*)\)\s*$`)

// ParseCreateTable parses a CREATE TABLE statement into a record.Schema.
// The default index kind for an attribute with no explicit INDEX clause
// is "hash", matching sql.py's parse_sql_create_table.
func ParseCreateTable(stmt string) (record.Schema, error) {
	m := createTablePattern.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return record.Schema{}, fmt.Errorf("sqlfront: malformed CREATE TABLE statement")
	}
	tableName, body := m[1], m[2]
	schema := record.Schema{Table: tableName}
	for _, part := range splitTopLevel(body, ',', '[', ']') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		am := attrPattern.FindStringSubmatch(part)
		if am == nil {
			return record.Schema{}, fmt.Errorf("sqlfront: malformed attribute definition %q", part)
		}
		name, typeName, keyKind, indexKind := am[1], am[2], strings.ToUpper(am[3]), strings.ToLower(am[4])
		dt, size, err := parseTypeName(typeName)
		if err != nil {
			return record.Schema{}, err
		}
		isKey := keyKind == "PRIMARY KEY" || keyKind == "KEY"
		if indexKind == "" {
			indexKind = "hash"
		}
		if keyKind == "PRIMARY KEY" {
			schema.PrimaryKey = name
		}
		schema.Attributes = append(schema.Attributes, record.Attribute{
			Name: name, Type: dt, Size: size, IsKey: isKey, Index: indexKind,
		})
	}
	return schema, nil
}

func parseTypeName(t string) (record.DataType, int, error) {
	upper := strings.ToUpper(t)
	switch {
	case upper == "INT":
		return record.TypeInt, 0, nil
	case upper == "DECIMAL" || upper == "FLOAT" || upper == "DOUBLE":
		return record.TypeFloat, 0, nil
	case upper == "BOOL" || upper == "BOOLEAN":
		return record.TypeBool, 0, nil
	case upper == "DATE":
		return record.TypeDate, 0, nil
	case upper == "POINT":
		return record.TypePoint, 0, nil
	case strings.HasPrefix(upper, "VARCHAR["):
		n, err := sizeOf(upper, "VARCHAR[")
		return record.TypeVarchar, n, err
	case strings.HasPrefix(upper, "CHAR["):
		n, err := sizeOf(upper, "CHAR[")
		return record.TypeChar, n, err
	default:
		return 0, 0, fmt.Errorf("sqlfront: unknown data type %q", t)
	}
}

func sizeOf(upper, prefix string) (int, error) {
	rest := strings.TrimPrefix(upper, prefix)
	rest = strings.TrimSuffix(rest, "]")
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("sqlfront: invalid size in type %q", upper)
	}
	return n, nil
}

// splitTopLevel splits s on sep, ignoring occurrences of sep nested
// inside an open/close bracket pair (used to keep VARCHAR[20]'s comma
// count, if any, from breaking attribute splitting — VARCHAR[N] has no
// comma today, but this keeps the splitter correct if that changes) and
// inside quoted strings.
func splitTopLevel(s string, sep, open, close rune) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	var quote rune
	for _, c := range s {
		switch {
		case inQuote:
			cur.WriteRune(c)
			if c == quote {
				inQuote = false
			}
		case c == '\'' || c == '"':
			inQuote = true
			quote = c
			cur.WriteRune(c)
		case c == open:
			depth++
			cur.WriteRune(c)
		case c == close:
			depth--
			cur.WriteRune(c)
		case c == sep && depth == 0:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	out = append(out, cur.String())
	return out
}

// splitValues splits a comma-separated value list at top level,
// respecting quoted strings and parenthesised POINT literals.
func splitValues(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	var quote rune
	for _, c := range s {
		switch {
		case inQuote:
			cur.WriteRune(c)
			if c == quote {
				inQuote = false
			}
		case c == '\'' || c == '"':
			inQuote = true
			quote = c
			cur.WriteRune(c)
		case c == '(':
			depth++
			cur.WriteRune(c)
		case c == ')':
			depth--
			cur.WriteRune(c)
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" || len(out) > 0 {
		out = append(out, s)
	}
	return out
}

var insertPattern = regexp.MustCompile(`(?is)^INSERT\s+INTO\s+(\w+)\s*(?:\(([^)]*)\))?\s*VALUES\s*(.+)$`)

// InsertStatement is a parsed INSERT INTO statement.
type InsertStatement struct {
	Table   string
	Columns []string // empty means "all attributes, in schema order"
	Rows    [][]string
}

// ParseInsert parses an INSERT INTO statement, mirroring sql.py's
// parse_sql_insert/safe_parse_insert_statement.
func ParseInsert(stmt string) (InsertStatement, error) {
	m := insertPattern.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return InsertStatement{}, fmt.Errorf("sqlfront: malformed INSERT statement")
	}
	ins := InsertStatement{Table: m[1]}
	if cols := strings.TrimSpace(m[2]); cols != "" {
		for _, c := range strings.Split(cols, ",") {
			ins.Columns = append(ins.Columns, strings.TrimSpace(c))
		}
	}
	// Scan top-level value tuples, tracking quotes and nesting so that a
	// parenthesised POINT literal stays inside its tuple.
	vals := m[3]
	depth, start := 0, 0
	var quote rune
	for i, c := range vals {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case c == ')' && depth > 0:
			depth--
			if depth == 0 {
				ins.Rows = append(ins.Rows, splitValues(vals[start:i]))
			}
		}
	}
	if len(ins.Rows) == 0 {
		return InsertStatement{}, fmt.Errorf("sqlfront: INSERT statement has no value tuples")
	}
	return ins, nil
}

var selectPattern = regexp.MustCompile(`(?is)^SELECT\s+(.+?)\s+FROM\s+(\w+)(?:\s+WHERE\s+(.+))?$`)

// SelectStatement is a parsed SELECT statement.
type SelectStatement struct {
	Table   string
	Columns []string // ["*"] means every attribute
	Where   string
}

// ParseSelect parses a SELECT statement, mirroring sql.py's
// _safe_parse_basic_select/parse_sql_select.
func ParseSelect(stmt string) (SelectStatement, error) {
	m := selectPattern.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return SelectStatement{}, fmt.Errorf("sqlfront: malformed SELECT statement")
	}
	sel := SelectStatement{Table: m[2], Where: strings.TrimSpace(m[3])}
	cols := strings.TrimSpace(m[1])
	if cols == "*" {
		sel.Columns = []string{"*"}
	} else {
		for _, c := range strings.Split(cols, ",") {
			sel.Columns = append(sel.Columns, strings.TrimSpace(c))
		}
	}
	return sel, nil
}

var deletePattern = regexp.MustCompile(`(?is)^DELETE\s+FROM\s+(\w+)(?:\s+WHERE\s+(.+))?$`)

// DeleteStatement is a parsed DELETE statement.
type DeleteStatement struct {
	Table string
	Where string
}

// ParseDelete parses a DELETE FROM statement. A DELETE with no WHERE is
// rejected by the table manager, not here, so callers can distinguish
// a parse error from the safety rejection.
func ParseDelete(stmt string) (DeleteStatement, error) {
	m := deletePattern.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return DeleteStatement{}, fmt.Errorf("sqlfront: malformed DELETE statement")
	}
	return DeleteStatement{Table: m[1], Where: strings.TrimSpace(m[2])}, nil
}

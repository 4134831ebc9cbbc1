package sqlfront

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/Jochuuuu/PVSProyectoB/internal/optconfig"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

// sniffCandidates are tried, in order, after the configured delimiter
// when auto-sniffing (SPEC_FULL.md §6).
var sniffCandidates = []rune{';', '\t', '|'}

// sniffSampleSize bounds how much of the decoded stream auto-sniffing
// reads before giving up and falling back to the configured delimiter.
const sniffSampleSize = 1024

// csvSentinels are the CSV cell values treated as "absent" rather than
// converted literally (SPEC_FULL.md §6, grounded on sql.py's
// _convert_csv_value). "nan" is deliberately excluded.
var csvSentinels = map[string]bool{"": true, "null": true, "none": true, "n/a": true, "na": true}

var importPattern = regexp.MustCompile(`(?is)^IMPORT\s+FROM\s+CSV\s+'([^']+)'\s+INTO\s+(\w+)(?:\s+WITH\s*\(([^)]*)\))?\s*$`)

// ImportStatement is a parsed IMPORT FROM CSV statement.
type ImportStatement struct {
	Path      string
	Table     string
	Delimiter rune
	Encoding  string
	NoHeader  bool
}

// ParseImportCSV parses an IMPORT FROM CSV statement, mirroring
// sql.py's parse_sql_import_csv.
func ParseImportCSV(stmt string) (ImportStatement, error) {
	m := importPattern.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return ImportStatement{}, fmt.Errorf("sqlfront: malformed IMPORT FROM CSV statement")
	}
	imp := ImportStatement{Path: m[1], Table: m[2], Delimiter: ','}
	if opts := strings.TrimSpace(m[3]); opts != "" {
		bag := map[string]interface{}{}
		for _, kv := range strings.Split(opts, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.ToUpper(strings.TrimSpace(parts[0]))
			val := strings.TrimSpace(unquote(strings.TrimSpace(parts[1])))
			switch key {
			case "DELIMITER":
				if val != "" {
					bag["delimiter"] = val
				}
			case "ENCODING":
				bag["encoding"] = val
			case "NO_HEADER":
				bag["no_header"] = strings.EqualFold(val, "true")
			}
		}
		o := optconfig.New(bag)
		if d := o.OptionalString("delimiter", ","); d != "" {
			imp.Delimiter = rune(d[0])
		}
		imp.Encoding = o.OptionalString("encoding", "utf-8")
		imp.NoHeader = o.OptionalBool("no_header", false)
		if err := o.Validate(); err != nil {
			return ImportStatement{}, err
		}
	}
	if imp.Encoding == "" {
		imp.Encoding = "utf-8"
	}
	return imp, nil
}

// OpenCSVReader wraps r with the statement's configured encoding
// (golang.org/x/text/encoding/htmlindex, SPEC_FULL.md §3), auto-sniffs
// the delimiter over the first sniffSampleSize decoded bytes (candidate
// delimiters: the configured one plus ';', tab, '|'; SPEC_FULL.md §6's
// supplemented CSV-sniffing feature), and returns a csv.Reader over the
// full stream including the sniffed bytes.
func OpenCSVReader(r io.Reader, imp ImportStatement) (*csv.Reader, error) {
	enc, err := htmlindex.Get(imp.Encoding)
	if err != nil {
		return nil, fmt.Errorf("sqlfront: unknown CSV encoding %q: %w", imp.Encoding, err)
	}
	decoded := transform.NewReader(r, enc.NewDecoder())
	br := bufio.NewReader(decoded)
	sample := make([]byte, sniffSampleSize)
	n, readErr := io.ReadFull(br, sample)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		return nil, fmt.Errorf("sqlfront: sniff CSV delimiter: %w", readErr)
	}
	sample = sample[:n]
	full := io.MultiReader(bytes.NewReader(sample), br)

	cr := csv.NewReader(full)
	cr.Comma = sniffDelimiter(string(sample), imp.Delimiter)
	cr.FieldsPerRecord = -1
	return cr, nil
}

// sniffDelimiter picks the first candidate (configured delimiter
// first, then ';', tab, '|') whose occurrence count is positive and
// identical across every non-empty sampled line, falling back to the
// configured delimiter if no candidate is consistent.
func sniffDelimiter(sample string, configured rune) rune {
	lines := strings.Split(sample, "\n")
	var nonEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) == 0 {
		return configured
	}
	candidates := append([]rune{configured}, sniffCandidates...)
	for _, c := range candidates {
		want := strings.Count(nonEmpty[0], string(c))
		if want == 0 {
			continue
		}
		consistent := true
		for _, l := range nonEmpty[1:] {
			if strings.Count(l, string(c)) != want {
				consistent = false
				break
			}
		}
		if consistent {
			return c
		}
	}
	return configured
}

// CreateColumnMapping maps CSV headers to schema attribute names using
// the three-tier matching sql.py's _create_csv_column_mapping performs:
// exact case-insensitive match, then substring match either direction,
// then match after stripping '_'/space from both sides.
func CreateColumnMapping(headers []string, schema record.Schema) map[int]string {
	mapping := map[int]string{}
	normalized := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.NewReplacer("_", "", " ", "").Replace(s)
	}
	for i, h := range headers {
		hl := strings.ToLower(strings.TrimSpace(h))
		matched := ""
		for _, a := range schema.Attributes {
			if strings.ToLower(a.Name) == hl {
				matched = a.Name
				break
			}
		}
		if matched == "" {
			for _, a := range schema.Attributes {
				al := strings.ToLower(a.Name)
				if strings.Contains(al, hl) || strings.Contains(hl, al) {
					matched = a.Name
					break
				}
			}
		}
		if matched == "" {
			hn := normalized(h)
			for _, a := range schema.Attributes {
				if normalized(a.Name) == hn {
					matched = a.Name
					break
				}
			}
		}
		if matched != "" {
			mapping[i] = matched
		}
	}
	return mapping
}

// ConvertCSVValue converts a raw CSV cell into a record.Value and
// reports true; if the cell is one of the CSV absent-value sentinels
// (SPEC_FULL.md §6) it returns the type's default value and false.
func ConvertCSVValue(cell string, t record.DataType) (record.Value, bool, error) {
	trimmed := strings.TrimSpace(cell)
	if csvSentinels[strings.ToLower(trimmed)] {
		return record.DefaultValue(t, 0), false, nil
	}
	v, err := ConvertLiteral(trimmed, t)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

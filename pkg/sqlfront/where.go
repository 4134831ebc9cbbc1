package sqlfront

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
	"github.com/Jochuuuu/PVSProyectoB/pkg/table"
)

// epsilon constants reproducing sql.py's _comparison_to_range: INT uses
// 1, FLOAT/DECIMAL and POINT use 0.01 (SPEC_FULL.md §6).
const (
	epsilonInt   = 1
	epsilonFloat = 0.01
)

// Synthetic extrema reproducing sql.py's _get_min_value_for_type /
// _get_max_value_for_type.
const (
	maxIntBound    = int32(2147483647)
	minIntBound    = int32(-2147483648)
	maxFloatBound  = 999999999.99
	minFloatBound  = -999999999.99
	maxPointBound  = 999999.0
	minPointBound  = -999999.0
)

// Where is the result of planning a WHERE clause: one filter set per
// kind, to be ANDed together (spec.md §4.7 — combined only by AND).
type Where struct {
	Exact   []table.ExactFilter
	Ranges  []table.RangeFilter
	Spatial []table.SpatialFilter
}

var radiusPattern = regexp.MustCompile(`(?i)RADIUS\s*\(\s*(\w+)\s*,\s*('[^']*'|\([^)]*\)|[^,]+?)\s*,\s*([^)]+?)\s*\)`)
var knnPattern = regexp.MustCompile(`(?i)KNN\s*\(\s*(\w+)\s*,\s*('[^']*'|\([^)]*\)|[^,]+?)\s*,\s*(\d+)\s*\)`)
var betweenPattern = regexp.MustCompile(`(?i)(\w+)\s+BETWEEN\s+(.+?)\s+AND\s+(.+?)(?:\s+AND\s|$)`)
var comparisonPattern = regexp.MustCompile(`(?i)^(\w+)\s*(>=|<=|<>|!=|=|>|<)\s*(.+)$`)

// ParseWhere parses clause into an intersectable set of filters against
// schema. Spatial predicates are extracted first, then BETWEEN/
// comparison/equality on the shrinking residual clause (sql.py's
// _parse_where_with_spatial calling _parse_where_with_ranges on the
// residual — SPEC_FULL.md §6).
func ParseWhere(clause string, schema record.Schema) (Where, error) {
	var w Where
	if strings.TrimSpace(clause) == "" {
		return w, nil
	}
	residual := clause

	residual = radiusPattern.ReplaceAllStringFunc(residual, func(m string) string {
		sub := radiusPattern.FindStringSubmatch(m)
		attr := sub[1]
		center, err := point.Parse(unquote(strings.TrimSpace(sub[2])))
		if err != nil {
			return m
		}
		r, err := strconv.ParseFloat(strings.TrimSpace(sub[3]), 64)
		if err != nil {
			return m
		}
		w.Spatial = append(w.Spatial, table.SpatialFilter{
			Attr: attr, Kind: table.SpatialRadius, Center: center, Radius: r,
		})
		return ""
	})

	residual = knnPattern.ReplaceAllStringFunc(residual, func(m string) string {
		sub := knnPattern.FindStringSubmatch(m)
		attr := sub[1]
		center, err := point.Parse(unquote(strings.TrimSpace(sub[2])))
		if err != nil {
			return m
		}
		k, err := strconv.Atoi(strings.TrimSpace(sub[3]))
		if err != nil {
			return m
		}
		w.Spatial = append(w.Spatial, table.SpatialFilter{
			Attr: attr, Kind: table.SpatialKNN, Center: center, K: k,
		})
		return ""
	})

	residual = stripEmptyAnd(residual)

	residual = betweenPattern.ReplaceAllStringFunc(residual, func(m string) string {
		sub := betweenPattern.FindStringSubmatch(m)
		attr := sub[1]
		pos := schema.AttributeIndex(attr)
		if pos == -1 {
			return m
		}
		lo, err1 := ConvertLiteral(sub[2], schema.Attributes[pos].Type)
		hi, err2 := ConvertLiteral(sub[3], schema.Attributes[pos].Type)
		if err1 != nil || err2 != nil {
			return m
		}
		w.Ranges = append(w.Ranges, table.RangeFilter{Attr: attr, Lo: lo, Hi: hi})
		return ""
	})

	residual = stripEmptyAnd(residual)

	for _, clause := range splitAnd(residual) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		m := comparisonPattern.FindStringSubmatch(clause)
		if m == nil {
			return Where{}, fmt.Errorf("sqlfront: malformed WHERE clause %q", clause)
		}
		attr, op, lit := m[1], m[2], strings.TrimSpace(m[3])
		pos := schema.AttributeIndex(attr)
		if pos == -1 {
			return Where{}, fmt.Errorf("sqlfront: unknown attribute %q in WHERE clause", attr)
		}
		t := schema.Attributes[pos].Type
		v, err := ConvertLiteral(lit, t)
		if err != nil {
			return Where{}, err
		}
		switch op {
		case "=":
			w.Exact = append(w.Exact, table.ExactFilter{Attr: attr, Value: v})
		case ">", ">=", "<", "<=":
			lo, hi, err := comparisonToRange(op, v, t)
			if err != nil {
				return Where{}, err
			}
			w.Ranges = append(w.Ranges, table.RangeFilter{Attr: attr, Lo: lo, Hi: hi})
		case "<>", "!=":
			return Where{}, fmt.Errorf("sqlfront: <> is not supported")
		}
	}

	return w, nil
}

// comparisonToRange rewrites a strict/loose inequality into a closed
// range using the epsilon/synthetic-extrema rules in SPEC_FULL.md §6,
// grounded on sql.py's _comparison_to_range.
func comparisonToRange(op string, v record.Value, t record.DataType) (lo, hi record.Value, err error) {
	switch t {
	case record.TypeInt, record.TypeDate:
		n := v.(int32)
		switch op {
		case ">":
			return n + epsilonInt, maxIntBound, nil
		case ">=":
			return n, maxIntBound, nil
		case "<":
			return minIntBound, n - epsilonInt, nil
		case "<=":
			return minIntBound, n, nil
		}
	case record.TypeFloat:
		f := v.(float64)
		switch op {
		case ">":
			return f + epsilonFloat, maxFloatBound, nil
		case ">=":
			return f, maxFloatBound, nil
		case "<":
			return minFloatBound, f - epsilonFloat, nil
		case "<=":
			return minFloatBound, f, nil
		}
	case record.TypeVarchar, record.TypeChar:
		s := v.(string)
		switch op {
		case ">", ">=":
			return s, MaxStringBound(), nil
		case "<", "<=":
			return MinStringBound(), s, nil
		}
	case record.TypePoint:
		p := v.(point.Point)
		switch op {
		case ">":
			return point.New(p.X+epsilonFloat, p.Y+epsilonFloat), point.New(maxPointBound, maxPointBound), nil
		case ">=":
			return p, point.New(maxPointBound, maxPointBound), nil
		case "<":
			return point.New(minPointBound, minPointBound), point.New(p.X-epsilonFloat, p.Y-epsilonFloat), nil
		case "<=":
			return point.New(minPointBound, minPointBound), p, nil
		}
	}
	return nil, nil, fmt.Errorf("sqlfront: unsupported comparison %q for type %v", op, t)
}

// MaxStringBound and MinStringBound are the synthetic string sentinels
// used to close an open-ended range on a VARCHAR/CHAR attribute.
func MaxStringBound() string { return "ZZZZZZZZZ" }
func MinStringBound() string { return "" }

func stripEmptyAnd(s string) string {
	re := regexp.MustCompile(`(?i)^\s*AND\s+|\s+AND\s*$|\s+AND\s+AND\s+`)
	for {
		next := re.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

func splitAnd(s string) []string {
	re := regexp.MustCompile(`(?i)\s+AND\s+`)
	return re.Split(s, -1)
}

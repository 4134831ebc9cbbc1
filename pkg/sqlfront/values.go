package sqlfront

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

// ConvertLiteral converts a literal's textual representation (as
// produced by the parser: possibly still quoted) into a record.Value
// of the given type.
func ConvertLiteral(lit string, t record.DataType) (record.Value, error) {
	lit = strings.TrimSpace(lit)
	switch t {
	case record.TypeInt, record.TypeDate:
		n, err := strconv.ParseInt(unquote(lit), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("sqlfront: invalid INT literal %q: %w", lit, err)
		}
		return int32(n), nil
	case record.TypeFloat:
		f, err := strconv.ParseFloat(unquote(lit), 64)
		if err != nil {
			return nil, fmt.Errorf("sqlfront: invalid DECIMAL literal %q: %w", lit, err)
		}
		return f, nil
	case record.TypeBool:
		switch strings.ToUpper(unquote(lit)) {
		case "TRUE", "YES", "1", "T", "Y":
			return true, nil
		case "FALSE", "NO", "0", "F", "N":
			return false, nil
		default:
			return nil, fmt.Errorf("sqlfront: invalid BOOL literal %q", lit)
		}
	case record.TypeVarchar, record.TypeChar:
		return unquote(lit), nil
	case record.TypePoint:
		p, err := point.Parse(unquote(lit))
		if err != nil {
			return nil, fmt.Errorf("sqlfront: invalid POINT literal %q: %w", lit, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("sqlfront: unknown attribute type")
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			inner := s[1 : len(s)-1]
			q := s[0]
			return strings.ReplaceAll(inner, string(q)+string(q), string(q))
		}
	}
	return s
}

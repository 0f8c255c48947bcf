package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"

	"github.com/rudderlabs/rudder-go-kit/jsonrs"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
)

// Coerce casts every column of every row to its declared type and returns new rows
// holding exactly the schema's columns. Values that cannot be converted become null,
// so a malformed value never drops or fails its row.
func Coerce(rows []model.Row, tableSchema schema.TableSchema) []model.Row {
	coerced := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		out := make(model.Row, len(tableSchema))
		for _, column := range tableSchema {
			out[column.Name] = CoerceValue(row[column.Name], column)
		}
		coerced = append(coerced, out)
	}
	return coerced
}

// CoerceValue converts a single value to the column's type, or nil.
func CoerceValue(v any, column schema.Column) any {
	if v == nil {
		return nil
	}
	if column.Repeated {
		return toStringSlice(v)
	}
	switch column.Type {
	case schema.Integer:
		return toInteger(v)
	case schema.Float:
		return toFloat(v)
	case schema.String:
		return toString(v)
	case schema.Timestamp:
		return toTimestamp(v)
	case schema.Boolean:
		return v
	default:
		return nil
	}
}

func toInteger(v any) any {
	switch t := v.(type) {
	case string:
		// integral numbers only, in base 10
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || !isIntegral(f) {
			return nil
		}
		return int64(f)
	case float32:
		if !isIntegral(float64(t)) {
			return nil
		}
	case float64:
		if !isIntegral(t) {
			return nil
		}
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return nil
	}
	return i
}

func toFloat(v any) any {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func toString(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := jsonrs.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil
	}
	return s
}

func toTimestamp(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC()
	case string:
		parsed, err := dateparse.ParseIn(strings.TrimSpace(t), time.UTC)
		if err != nil {
			return nil
		}
		return parsed.UTC()
	}
	parsed, err := cast.ToTimeInDefaultLocationE(v, time.UTC)
	if err != nil || parsed.IsZero() {
		return nil
	}
	return parsed.UTC()
}

func toStringSlice(v any) any {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return nil
		}
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, elem := range t {
			if s, ok := toString(elem).(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := toString(v).(string); ok {
		return []string{s}
	}
	return nil
}

func isIntegral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f) &&
		f >= math.MinInt64 && f < math.MaxInt64
}

package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// IsNull reports whether v is a null scalar (nil or float NaN).
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	default:
		return false
	}
}

// KindOf infers a column kind from the Go types of its non-null values.
//
// All-null or empty input is classified as KindObject, mirroring how an
// untyped empty column behaves in the loaders.
func KindOf(values []any) Kind {
	var seen bool
	allNum, allBool, allTime := true, true, true
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		seen = true
		if _, ok := ToFloat(v); !ok {
			allNum = false
		}
		if _, ok := v.(bool); !ok {
			allBool = false
		}
		if _, ok := v.(time.Time); !ok {
			allTime = false
		}
		if !allNum && !allBool && !allTime {
			return KindObject
		}
	}
	switch {
	case !seen:
		return KindObject
	case allNum:
		return KindNumeric
	case allBool:
		return KindBoolean
	case allTime:
		return KindTemporal
	default:
		return KindObject
	}
}

// ToFloat converts Go numeric scalars to float64. Strings, bools and other
// types are not numeric and return ok=false.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// FormatValue returns a stable, canonical string form of v.
//
// Canonicalization rules:
//   - nil and NaN become "" (callers decide how to encode nulls).
//   - Integers are base-10, floats use the shortest 'g' representation.
//   - time.Time values are encoded as RFC3339Nano in UTC.
//   - []byte is treated as a string.
//   - Strings are returned verbatim (no trimming).
func FormatValue(v any) string {
	var b strings.Builder
	appendCanonicalValue(&b, v)
	return b.String()
}

func appendCanonicalValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		return

	case string:
		b.WriteString(t)

	case []byte:
		b.Write(t)

	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}

	case int:
		b.WriteString(strconv.Itoa(t))
	case int8:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))

	case uint:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))

	case float32:
		if math.IsNaN(float64(t)) {
			return
		}
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		if math.IsNaN(t) {
			return
		}
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))

	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))

	default:
		b.WriteString(fmt.Sprint(t))
	}
}

// ValueKey returns an equality key for v that is tagged by value family, so
// that int 1 and float 1.0 compare equal while "1" and 1 do not. Null values
// return "".
func ValueKey(v any) string {
	if IsNull(v) {
		return ""
	}
	if k, ok := numericKey(v); ok {
		return "n:" + k
	}
	switch t := v.(type) {
	case bool:
		return "b:" + FormatValue(t)
	case time.Time:
		return "t:" + FormatValue(t)
	default:
		return "s:" + FormatValue(t)
	}
}

// numericKey renders integers exactly. Floats holding an integral value in
// the int64 range render like the integer; other floats use 'g'.
func numericKey(v any) (string, bool) {
	switch t := v.(type) {
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	}
	f, ok := ToFloat(v)
	if !ok {
		return "", false
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

// ValueSet is the set of distinct non-null values of a column.
type ValueSet map[string]struct{}

// NewValueSet collects the distinct non-null values of col.
func NewValueSet(col Column) ValueSet {
	s := make(ValueSet, len(col.Values))
	for _, v := range col.Values {
		if IsNull(v) {
			continue
		}
		s[ValueKey(v)] = struct{}{}
	}
	return s
}

// Contains reports whether v is in the set. Nulls are never contained.
func (s ValueSet) Contains(v any) bool {
	if IsNull(v) {
		return false
	}
	_, ok := s[ValueKey(v)]
	return ok
}

package table

import (
	"strconv"
	"strings"
	"time"
)

// Inferred text types, in the order they are preferred.
const (
	TextInteger   = "integer"
	TextBoolean   = "boolean"
	TextDate      = "date"
	TextTimestamp = "timestamp"
	TextFloat     = "float"
	TextString    = "text"
)

// InferTextType infers a coarse type for a column of textual values.
// Blank values are ignored; a column with no values is "text".
//
// More specific types win: integer, boolean, date, timestamp, float, text.
func InferTextType(values []string) string {
	var seen bool
	allInt := true
	allFloat := true
	allBool := true
	allDate := true
	allTS := true

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBoolLoose(v); !ok {
				allBool = false
			}
		}
		if allDate {
			if _, _, ok := parseDateLoose(v); !ok {
				allDate = false
			}
		}
		if allTS {
			if _, _, ok := parseTimestampLoose(v); !ok {
				allTS = false
			}
		}
	}

	if !seen {
		return TextString
	}
	switch {
	case allInt:
		return TextInteger
	case allBool:
		return TextBoolean
	case allDate:
		return TextDate
	case allTS:
		return TextTimestamp
	case allFloat:
		return TextFloat
	default:
		return TextString
	}
}

// ParseColumn converts a column of raw text values into a typed column.
// Elements of raw must be nil (null) or string. The text type is inferred
// with InferTextType and every non-null value is coerced to it.
//
// Integer-looking columns made only of 0/1 are inferred as integers, not
// booleans, because integer wins the tie.
func ParseColumn(name string, raw []any) Column {
	texts := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			texts = append(texts, s)
		}
	}
	typ := InferTextType(texts)

	out := make([]any, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			out[i] = nil
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			out[i] = nil
			continue
		}
		out[i] = coerceText(typ, s)
	}
	return Column{Name: name, Kind: kindForText(typ), Values: out}
}

func coerceText(typ, s string) any {
	switch typ {
	case TextInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case TextFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case TextBoolean:
		if b, ok := parseBoolLoose(s); ok {
			return b
		}
	case TextDate:
		if t, _, ok := parseDateLoose(s); ok {
			return t
		}
	case TextTimestamp:
		if t, _, ok := parseTimestampLoose(s); ok {
			return t
		}
	}
	return s
}

func kindForText(typ string) Kind {
	switch typ {
	case TextInteger, TextFloat:
		return KindNumeric
	case TextBoolean:
		return KindBoolean
	case TextDate, TextTimestamp:
		return KindTemporal
	default:
		return KindObject
	}
}

func parseBoolLoose(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

func parseDateLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

func parseTimestampLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

// InferColumn builds a column from decoded values. When every non-null
// value is a string the column goes through ParseColumn; otherwise the Go
// types decide the kind as in NewColumn.
func InferColumn(name string, values []any) Column {
	for _, v := range values {
		if v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			return NewColumn(name, values)
		}
	}
	return ParseColumn(name, values)
}

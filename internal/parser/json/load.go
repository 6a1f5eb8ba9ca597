// Package json loads JSON records into a table.Table.
//
// Accepted shapes:
//   - a root array of objects,
//   - a root object whose first array-of-objects field holds the records
//     (envelope),
//   - a single root object (one record),
//   - newline-delimited objects, alone or trailing any of the above.
//
// Nested objects are flattened into "parent_child" columns.
package json

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"recon/pkg/table"
)

// Options controls JSON decoding.
type Options struct {
	// HeaderMap renames flattened keys.
	HeaderMap map[string]string
	// ArrayJoinSeparator joins arrays of strings into one value; default ",".
	ArrayJoinSeparator string
	// FlattenSeparator joins nested object keys; default "_".
	FlattenSeparator string
	// Columns keeps only these columns, in this order.
	Columns []string
	// OnError is called with the record number of a decode failure.
	OnError func(line int, err error)
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.ArrayJoinSeparator) == "" {
		o.ArrayJoinSeparator = ","
	}
	if o.FlattenSeparator == "" {
		o.FlattenSeparator = "_"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// StreamRecords decodes r and calls emit once per record with a flattened,
// renamed object. Numbers are json.Number.
func StreamRecords(ctx context.Context, r io.Reader, opt Options, emit func(line int, rec map[string]any) error) error {
	opt = opt.withDefaults()
	dec := json.NewDecoder(r)
	dec.UseNumber()

	line := 0
	emitObject := func(obj map[string]any) error {
		line++
		flat := make(map[string]any, len(obj))
		flatten(flat, "", obj, opt.FlattenSeparator)
		if len(opt.HeaderMap) > 0 {
			for from, to := range opt.HeaderMap {
				if v, ok := flat[from]; ok && to != "" {
					delete(flat, from)
					flat[to] = v
				}
			}
		}
		return emit(line, flat)
	}

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		if opt.OnError != nil {
			opt.OnError(0, err)
		}
		return fmt.Errorf("json: read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}
	switch d {
	case '[':
		if err := streamArrayOfObjects(ctx, dec, emitObject, opt.OnError, &line); err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("json: read array end: %w", err)
		} else if end != json.Delim(']') {
			return fmt.Errorf("json: expected array end ']', got %v", end)
		}
		return streamTrailingObjects(ctx, dec, emitObject, opt.OnError, &line)

	case '{':
		streamed, single, err := streamEnvelopeOrSingle(ctx, dec, emitObject, opt.OnError, &line)
		if err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("json: read object end: %w", err)
		} else if end != json.Delim('}') {
			return fmt.Errorf("json: expected object end '}', got %v", end)
		}
		if !streamed && single != nil {
			if err := emitObject(single); err != nil {
				return err
			}
		}
		return streamTrailingObjects(ctx, dec, emitObject, opt.OnError, &line)

	default:
		return fmt.Errorf("json: unsupported root delimiter %q", d)
	}
}

// Load reads every record of r into a table. Columns appear in first-seen
// order unless opt.Columns is set; keys missing from a record are null.
//
// Columns holding only strings go through text inference (dates, numbers
// in quotes); other columns keep their decoded JSON types.
func Load(ctx context.Context, r io.Reader, opt Options) (table.Table, error) {
	opt = opt.withDefaults()

	var order []string
	pos := map[string]int{}
	if len(opt.Columns) > 0 {
		for i, c := range opt.Columns {
			pos[c] = i
		}
		order = append(order, opt.Columns...)
	}
	var cols [][]any
	cols = make([][]any, len(order))
	rows := 0

	err := StreamRecords(ctx, r, opt, func(_ int, rec map[string]any) error {
		if len(opt.Columns) == 0 {
			keys := make([]string, 0, len(rec))
			for k := range rec {
				if _, ok := pos[k]; !ok {
					keys = append(keys, k)
				}
			}
			// Keys new in the same record have no defined order; sort them.
			sort.Strings(keys)
			for _, k := range keys {
				pos[k] = len(order)
				order = append(order, k)
				cols = append(cols, make([]any, rows))
			}
		}
		for k, v := range rec {
			if i, ok := pos[k]; ok {
				cols[i] = append(cols[i], scalar(v, opt.ArrayJoinSeparator))
			}
		}
		rows++
		for i := range cols {
			if len(cols[i]) < rows {
				cols[i] = append(cols[i], nil)
			}
		}
		return nil
	})
	if err != nil {
		return table.Table{}, err
	}

	out := make([]table.Column, len(order))
	for i, name := range order {
		out[i] = table.InferColumn(name, cols[i])
	}
	t, err := table.New(out...)
	if err != nil {
		return table.Table{}, fmt.Errorf("json: build table: %w", err)
	}
	opt.Logger.Debug("json: loaded", zap.Int("rows", t.NumRows()), zap.Int("columns", t.NumColumns()))
	return t, nil
}

func flatten(dst map[string]any, prefix string, obj map[string]any, sep string) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + sep + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(dst, key, nested, sep)
			continue
		}
		dst[key] = v
	}
}

// scalar converts a decoded JSON value to a table value. Arrays of strings
// are joined with sep; other arrays keep their JSON text.
func scalar(v any, sep string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				b, err := json.Marshal(t)
				if err != nil {
					return fmt.Sprint(t)
				}
				return string(b)
			}
			ss = append(ss, s)
		}
		return strings.Join(ss, sep)
	default:
		return v
	}
}

func streamTrailingObjects(ctx context.Context, dec *json.Decoder, emit func(map[string]any) error, onErr func(int, error), line *int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if err == io.EOF {
				return nil
			}
			if onErr != nil {
				onErr(*line+1, err)
			}
			return fmt.Errorf("json: decode trailing object: %w", err)
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
}

// streamArrayOfObjects emits the elements of the array whose '[' was just
// consumed. null elements are skipped; any other non-object is an error.
func streamArrayOfObjects(ctx context.Context, dec *json.Decoder, emit func(map[string]any) error, onErr func(int, error), line *int) error {
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			if onErr != nil {
				onErr(*line+1, err)
			}
			return fmt.Errorf("json: decode array element: %w", err)
		}
		if err := emitElement(raw, emit, onErr, line); err != nil {
			return err
		}
	}
	return nil
}

func emitElement(raw any, emit func(map[string]any) error, onErr func(int, error), line *int) error {
	if raw == nil {
		return nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		err := fmt.Errorf("json: array element not an object (got %T)", raw)
		if onErr != nil {
			onErr(*line+1, err)
		}
		return err
	}
	return emit(obj)
}

// streamEnvelopeOrSingle walks the fields of the root object whose '{' was
// just consumed. The first field holding a non-empty array of objects is
// emitted as the record stream and the other fields are ignored. Without
// such a field the object itself is returned as a single record.
func streamEnvelopeOrSingle(ctx context.Context, dec *json.Decoder, emit func(map[string]any) error, onErr func(int, error), line *int) (streamed bool, single map[string]any, _ error) {
	single = make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return false, nil, fmt.Errorf("json: object key not a string (got %T)", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if onErr != nil {
				onErr(*line+1, err)
			}
			return false, nil, fmt.Errorf("json: read value of %q: %w", key, err)
		}
		if streamed {
			continue
		}

		val, err := decodeRaw(raw)
		if err != nil {
			return false, nil, fmt.Errorf("json: decode value of %q: %w", key, err)
		}
		if records, ok := objectArray(val); ok {
			for _, rec := range records {
				if err := ctx.Err(); err != nil {
					return false, nil, err
				}
				if err := emitElement(rec, emit, onErr, line); err != nil {
					return false, nil, err
				}
			}
			streamed = true
			continue
		}
		single[key] = val
	}
	if streamed {
		return true, nil, nil
	}
	return false, single, nil
}

func decodeRaw(raw json.RawMessage) (any, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// objectArray reports whether v is a non-empty array whose non-null
// elements are all objects.
func objectArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	seen := false
	for _, it := range arr {
		if it == nil {
			continue
		}
		if _, ok := it.(map[string]any); !ok {
			return nil, false
		}
		seen = true
	}
	return arr, seen
}

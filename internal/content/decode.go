package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// decodeStrict decodes a single JSON object into p. Unknown keys and values
// of the wrong JSON type are reported at their JSON path, element indexes
// included, and nothing is decoded when there are any.
func decodeStrict(raw json.RawMessage, p Payload) []apperrors.FieldError {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var whole json.RawMessage
	if err := dec.Decode(&whole); err != nil {
		return []apperrors.FieldError{syntaxError(err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return []apperrors.FieldError{{Path: "", Message: "must be a single JSON object"}}
	}
	if got := jsonKindOf(whole); got != "object" {
		return []apperrors.FieldError{{Path: "", Message: "must be a JSON object, got " + got}}
	}
	if fields := checkShape(whole, reflect.TypeOf(p).Elem(), ""); len(fields) > 0 {
		return fields
	}
	if err := json.Unmarshal(whole, p); err != nil {
		return []apperrors.FieldError{{Path: "", Message: err.Error()}}
	}
	return nil
}

func syntaxError(err error) apperrors.FieldError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return apperrors.FieldError{Path: "", Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
	}
	return apperrors.FieldError{Path: "", Message: "malformed JSON"}
}

// checkShape walks raw alongside t. null is accepted anywhere and left to
// the required rules.
func checkShape(raw json.RawMessage, t reflect.Type, path string) []apperrors.FieldError {
	got := jsonKindOf(raw)
	if got == "null" {
		return nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		return checkShape(raw, t.Elem(), path)

	case reflect.Struct:
		if got != "object" {
			return mismatch(path, "an object", got)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return []apperrors.FieldError{{Path: path, Message: "malformed JSON"}}
		}
		known := jsonFields(t)
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []apperrors.FieldError
		for _, k := range keys {
			ft, ok := known[k]
			if !ok {
				out = append(out, apperrors.FieldError{Path: joinPath(path, k), Message: "unknown field"})
				continue
			}
			out = append(out, checkShape(obj[k], ft, joinPath(path, k))...)
		}
		return out

	case reflect.Slice, reflect.Array:
		if got != "array" {
			return mismatch(path, "an array", got)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return []apperrors.FieldError{{Path: path, Message: "malformed JSON"}}
		}
		var out []apperrors.FieldError
		for i, item := range items {
			out = append(out, checkShape(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i))...)
		}
		return out

	case reflect.String:
		if got != "string" {
			return mismatch(path, "a string", got)
		}
	case reflect.Bool:
		if got != "boolean" {
			return mismatch(path, "a boolean", got)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if got != "number" {
			return mismatch(path, "an integer", got)
		}
		if err := json.Unmarshal(raw, reflect.New(t).Interface()); err != nil {
			return []apperrors.FieldError{{Path: path, Message: "must be an integer, got " + string(raw)}}
		}
	case reflect.Float32, reflect.Float64:
		if got != "number" {
			return mismatch(path, "a number", got)
		}
	}
	return nil
}

func mismatch(path, want, got string) []apperrors.FieldError {
	return []apperrors.FieldError{{Path: path, Message: fmt.Sprintf("must be %s, got %s", want, got)}}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func jsonKindOf(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "nothing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

var fieldCache sync.Map // reflect.Type -> map[string]reflect.Type

// jsonFields maps the JSON names of t to their types. Embedded structs are
// flattened the way encoding/json flattens them.
func jsonFields(t reflect.Type) map[string]reflect.Type {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]reflect.Type)
	}
	fields := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			for name, ft := range jsonFields(f.Type) {
				if _, shadowed := fields[name]; !shadowed {
					fields[name] = ft
				}
			}
			continue
		}
		if !f.IsExported() || f.Tag.Get("json") == "-" {
			continue
		}
		name := jsonName(f)
		if name == "" {
			name = f.Name
		}
		fields[name] = f.Type
	}
	fieldCache.Store(t, fields)
	return fields
}

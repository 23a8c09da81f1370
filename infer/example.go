package infer

import (
	"fmt"
	"mime/multipart"
	"strconv"
)

// UploadedFilePlaceholder stands in for uploaded files in examples.
const UploadedFilePlaceholder = "[uploaded_file]"

var nullSentinels = map[string]any{
	TypeObject:  "null",
	TypeBoolean: false,
	TypeDate:    "0000-00-00",
	TypeInteger: 0,
	TypeString:  "",
	TypeDouble:  float64(0),
}

// Example builds an example body from the submitted payload. types maps
// dotted field paths (list indices written as "*") to property types.
func Example(payload map[string]any, types map[string]string) map[string]any {
	return ReplaceNulls(ReplaceObjects(payload), types)
}

// ReplaceObjects returns a copy of payload where every value that is not
// plain data is replaced by a placeholder naming it.
func ReplaceObjects(payload map[string]any) map[string]any {
	res := make(map[string]any, len(payload))
	for k, v := range payload {
		res[k] = replaceObject(v)
	}
	return res
}

func replaceObject(v any) any {
	switch x := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case map[string]any:
		return ReplaceObjects(x)
	case []any:
		res := make([]any, len(x))
		for i, e := range x {
			res[i] = replaceObject(e)
		}
		return res
	case []string:
		res := make([]any, len(x))
		for i, e := range x {
			res[i] = e
		}
		return res
	case *multipart.FileHeader:
		return UploadedFilePlaceholder
	case []*multipart.FileHeader:
		res := make([]any, len(x))
		for i := range x {
			res[i] = UploadedFilePlaceholder
		}
		return res
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ReplaceNulls returns a copy of payload where null leaves of a known type
// hold that type's sentinel value.
func ReplaceNulls(payload map[string]any, types map[string]string) map[string]any {
	return replaceNulls(payload, types, "")
}

func replaceNulls(payload map[string]any, types map[string]string, prefix string) map[string]any {
	res := make(map[string]any, len(payload))
	for k, v := range payload {
		res[k] = replaceNull(k, v, types, join(prefix, k))
	}
	return res
}

func replaceNull(key string, v any, types map[string]string, path string) any {
	switch x := v.(type) {
	case nil:
		if typ, ok := lookupType(types, path, key); ok {
			if s, ok := nullSentinels[typ]; ok {
				return s
			}
		}
		return nil
	case map[string]any:
		return replaceNulls(x, types, path)
	case []any:
		res := make([]any, len(x))
		for i, e := range x {
			res[i] = replaceNull(strconv.Itoa(i), e, types, join(path, "*"))
		}
		return res
	default:
		return v
	}
}

// lookupType finds the declared type of a leaf by its full path, then by its
// own key.
func lookupType(types map[string]string, path, key string) (string, bool) {
	if t, ok := types[path]; ok {
		return t, true
	}
	t, ok := types[key]
	return t, ok
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

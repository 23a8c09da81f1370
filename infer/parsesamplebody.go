package infer

import (
	"github.com/valyala/fastjson"
)

// ParseSampleBodyBytes decodes a JSON sample into plain Go values: objects
// become map[string]any, arrays []any, integral numbers int64 and other
// numbers float64.
func ParseSampleBodyBytes(b []byte) (any, error) {
	v, err := fastjson.ParseBytes(b)
	if err != nil {
		return nil, err
	}
	return ParseSampleBodyFastJson(v)
}

// ParseSampleObjectBytes decodes a JSON object sample. Anything but an object
// yields an empty map.
func ParseSampleObjectBytes(b []byte) (map[string]any, error) {
	v, err := ParseSampleBodyBytes(b)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{}, nil
}

func ParseSampleBodyFastJson(v *fastjson.Value) (any, error) {
	return parseFastJsonValue(v, 0)
}

func parseFastJsonValue(v *fastjson.Value, depth int) (any, error) {
	switch v.Type() {
	case fastjson.TypeObject:
		o, err := v.Object()
		if err != nil {
			return nil, err
		}
		return parseFastJsonObject(o, depth)
	case fastjson.TypeArray:
		a, err := v.Array()
		if err != nil {
			return nil, err
		}
		return parseFastJsonArray(a, depth)
	case fastjson.TypeString:
		return string(v.GetStringBytes()), nil
	case fastjson.TypeNumber:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	case fastjson.TypeTrue:
		return true, nil
	case fastjson.TypeFalse:
		return false, nil
	case fastjson.TypeNull:
		return nil, nil
	}

	panic("should be unreachable")
}

func parseFastJsonObject(o *fastjson.Object, depth int) (map[string]any, error) {
	res := make(map[string]any, o.Len())

	var visitErr error
	o.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		child, childErr := parseFastJsonValue(v, depth+1)
		if childErr != nil {
			visitErr = childErr
			return
		}
		res[string(key)] = child
	})

	if visitErr != nil {
		return nil, visitErr
	}
	return res, nil
}

func parseFastJsonArray(vs []*fastjson.Value, depth int) ([]any, error) {
	res := make([]any, len(vs))
	for i, v := range vs {
		e, err := parseFastJsonValue(v, depth+1)
		if err != nil {
			return nil, err
		}
		res[i] = e
	}
	return res, nil
}

package apispec

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Marshal encodes doc as indented JSON. Map keys are sorted, so equal
// documents encode to equal bytes.
func Marshal(doc *openapi2.T) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func Unmarshal(bs []byte) (*openapi2.T, error) {
	var doc openapi2.T
	if err := json.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	Normalize(&doc)
	return &doc, nil
}

// Encode renders doc in format, converted to OpenAPI 3 when v3 is set.
func Encode(doc *openapi2.T, format Format, v3 bool) ([]byte, error) {
	var v any = doc
	if v3 {
		d3, err := openapi2conv.ToV3(doc)
		if err != nil {
			return nil, fmt.Errorf("convert to openapi 3: %w", err)
		}
		v = d3
	}

	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	if format != FormatYAML {
		return bs, nil
	}
	return jsonToYAML(bs)
}

// Published documents are already JSON, so YAML goes through a generic tree.
func jsonToYAML(bs []byte) ([]byte, error) {
	var tree any
	if err := json.Unmarshal(bs, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

// EncodePublished re-renders a published JSON document.
func EncodePublished(bs []byte, format Format, v3 bool) ([]byte, error) {
	if format != FormatYAML && !v3 {
		return bs, nil
	}
	doc, err := Unmarshal(bs)
	if err != nil {
		return nil, err
	}
	return Encode(doc, format, v3)
}

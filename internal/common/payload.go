package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
)

// pathLanguage is JSONPath with full gval expressions, so filters such as
// [?(@.revenue > 100)] can compare and combine values.
var pathLanguage = gval.Full(jsonpath.Language())

// Payload is a decoded provider response queried by JSONPath. Provider
// payloads are cached opaque and only shaped when read.
type Payload struct {
	doc any
}

// DecodePayload parses raw JSON into a Payload.
func DecodePayload(raw json.RawMessage) (*Payload, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &Payload{doc: doc}, nil
}

// Value evaluates path. A path that selects a list yields its first element.
func (p *Payload) Value(path string) (any, bool) {
	if p == nil || p.doc == nil {
		return nil, false
	}
	eval, err := pathLanguage.NewEvaluable(path)
	if err != nil {
		return nil, false
	}
	v, err := eval(context.Background(), p.doc)
	if err != nil {
		return nil, false
	}
	if list, ok := v.([]any); ok && strings.ContainsAny(path, "*?") {
		if len(list) == 0 {
			return nil, false
		}
		v = list[0]
	}
	return v, v != nil
}

// Float returns the number at path. Numeric strings are accepted; "", "N/A"
// and anything unparsable report false.
func (p *Payload) Float(path string) (float64, bool) {
	v, ok := p.Value(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		if n == "" || n == "N/A" {
			return 0, false
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		return 0, false
	}
	return 0, false
}

// FloatOr returns the number at path or def.
func (p *Payload) FloatOr(path string, def float64) float64 {
	if f, ok := p.Float(path); ok {
		return f
	}
	return def
}

// FloatPtr returns the number at path, nil when absent.
func (p *Payload) FloatPtr(path string) *float64 {
	if f, ok := p.Float(path); ok {
		return &f
	}
	return nil
}

// String returns the value at path rendered as a string, "" when absent.
func (p *Payload) String(path string) string {
	v, ok := p.Value(path)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// Len returns the length of the array at path, 0 when it is not an array.
func (p *Payload) Len(path string) int {
	v, ok := p.Value(path)
	if !ok {
		return 0
	}
	if list, ok := v.([]any); ok {
		return len(list)
	}
	return 0
}

package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// marshalJSON encodes v without HTML escaping and without the trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// cell renders one field for a row-oriented destination. Scalars are written
// as text, nil as an empty cell, and lists or mappings as canonical JSON
// (object keys sorted).
func cell(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case int8, int16, int32, uint, uint8, uint16, uint32, uint64, float32:
		return fmt.Sprint(v), nil
	}

	b, err := marshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode nested value: %w", err)
	}
	return string(b), nil
}

package oracle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

// ParseResponse extracts the JSON object from a model reply and validates it
// into chapter fields. The reply may be wrapped in markdown fences or prose.
// Slightly malformed JSON is repaired before giving up.
//
// Every field key must be present. Values are kept as returned: null becomes
// "" and other non-string values are converted to strings rather than
// dropped.
func ParseResponse(response string) (chapter.Fields, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return chapter.Fields{}, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}

	raw, err := decodeObject(jsonStr)
	if err != nil {
		return chapter.Fields{}, err
	}

	values := make(map[string]string, len(chapter.FieldNames))
	for _, name := range chapter.FieldNames {
		v, ok := raw[name]
		if !ok {
			return chapter.Fields{}, fmt.Errorf("%w: missing field %q", ErrInvalidResponse, name)
		}
		values[name] = coerce(v)
	}

	return chapter.FieldsFromMap(values), nil
}

func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(response, "}")
	if end <= start {
		// Truncated reply; let the repair pass try to close it.
		return response[start:]
	}
	return response[start : end+1]
}

func decodeObject(jsonStr string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &raw); err == nil {
		return raw, nil
	}

	repaired, err := jsonrepair.JSONRepair(jsonStr)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable JSON: %w", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return nil, fmt.Errorf("%w: unparseable JSON after repair: %w", ErrInvalidResponse, err)
	}
	return raw, nil
}

// coerce converts a decoded JSON value to its string form. Arrays are joined
// with "、" so list-valued moods and themes keep the usual delimiter.
func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			parts = append(parts, coerce(item))
		}
		return strings.Join(parts, "、")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

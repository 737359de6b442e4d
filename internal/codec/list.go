package codec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseList reads a list-valued custom field.
// Accepts a JSON array (native or encoded in a string) and falls back to
// comma-separated values. Items are trimmed and empties dropped.
func ParseList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return cleanList(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			items = append(items, fmt.Sprint(item))
		}
		return cleanList(items)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") {
			var items []any
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return ParseList(items)
			}
		}
		return cleanList(strings.Split(s, ","))
	default:
		return cleanList([]string{fmt.Sprint(v)})
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

var (
	vendorKeys = canonicalKeys(vendorFields)
	itemKeys   = canonicalKeys(itemFields)
)

// NormalizeAndSanitizeJSON
// - maps key spellings onto the canonical ones (vendor -> Vendor, part_number -> Part Number)
// - coerces numbers and booleans to strings
// - drops nulls, empty strings and unknown keys
// - drops Vendor/Items when they have the wrong shape
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	out := map[string]any{}
	for k, v := range m {
		switch normKey(k) {
		case "vendor":
			obj, ok := v.(map[string]any)
			if !ok {
				dropped = append(dropped, k+"(type)")
				continue
			}
			out["Vendor"] = sanitizeObject(obj, vendorKeys, "Vendor.", &dropped)
		case "items":
			arr, ok := v.([]any)
			if !ok {
				dropped = append(dropped, k+"(type)")
				continue
			}
			items := make([]any, 0, len(arr))
			for i, el := range arr {
				obj, ok := el.(map[string]any)
				if !ok {
					dropped = append(dropped, fmt.Sprintf("Items[%d](type)", i))
					continue
				}
				clean := sanitizeObject(obj, itemKeys, fmt.Sprintf("Items[%d].", i), &dropped)
				if len(clean) == 0 {
					dropped = append(dropped, fmt.Sprintf("Items[%d](empty)", i))
					continue
				}
				items = append(items, clean)
			}
			out["Items"] = items
		default:
			dropped = append(dropped, k+"(unknown)")
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Debug("llm.extract.sanitize", "dropped", dropped)
	}
	return b, dropped, nil
}

func sanitizeObject(obj map[string]any, allowed map[string]string, path string, dropped *[]string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		key, ok := allowed[normKey(k)]
		if !ok {
			*dropped = append(*dropped, path+k+"(unknown)")
			continue
		}
		s, ok := coerceString(v)
		if !ok {
			*dropped = append(*dropped, path+k+"(type)")
			continue
		}
		if s == "" {
			continue
		}
		out[key] = s
	}
	return out
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") {
			return "", true
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func canonicalKeys(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[normKey(f)] = f
	}
	return out
}

// normKey folds case, spaces, dashes and underscores.
func normKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}

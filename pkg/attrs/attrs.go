package attrs

// ExtractString extracts a string value from a slog-style key/value slice
// ([key1, value1, key2, value2, ...]). Returns "" when the key is missing or
// its value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			return v
		}
	}
	return ""
}

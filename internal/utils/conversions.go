package utils

// ClaimStrings reads a token claim that may be a single string or a list of strings.
// Non-string entries are dropped.
func ClaimStrings(v any) []string {
	switch value := v.(type) {
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case []string:
		return value
	case []any:
		stringSlice := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				stringSlice = append(stringSlice, s)
			}
		}
		return stringSlice
	}
	return nil
}

// ClaimString returns the first string of a claim, or ""
func ClaimString(v any) string {
	if values := ClaimStrings(v); len(values) > 0 {
		return values[0]
	}
	return ""
}

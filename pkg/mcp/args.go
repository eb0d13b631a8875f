package mcp

import "fmt"

// stringArg extracts a string argument. A required argument must be present
// and non-empty.
func stringArg(args map[string]any, key string, required bool) (string, error) {
	val, ok := args[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%s parameter is required", key)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	if required && str == "" {
		return "", fmt.Errorf("%s cannot be empty", key)
	}
	return str, nil
}

// limitArg reads "limit", clamped to [1, maxLimit]. MCP sends numbers as
// float64.
func limitArg(args map[string]any) int {
	f, ok := args["limit"].(float64)
	if !ok {
		return defaultLimit
	}
	return max(1, min(int(f), maxLimit))
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

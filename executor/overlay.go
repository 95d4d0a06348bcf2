package executor

import "encoding/json"

// overlayJSON attempts to parse output as a single JSON object; on success
// it overlays "success" and "message" keys onto the result and returns the
// full decoded object as structured data, per spec.md §4.D.
func overlayJSON(output string, success bool) (message string, overlaidSuccess bool, data map[string]any) {
	message = output
	overlaidSuccess = success

	if output == "" {
		return message, overlaidSuccess, nil
	}

	var raw any
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		return message, overlaidSuccess, nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return message, overlaidSuccess, nil
	}

	if m, ok := obj["message"].(string); ok {
		message = m
	}
	if s, ok := obj["success"].(bool); ok {
		overlaidSuccess = s
	}
	return message, overlaidSuccess, obj
}

package executor

import (
	"fmt"
	"strconv"

	"github.com/bindkit/bindkit/model"
)

// validateArguments checks required presence, choices membership, and
// int/float parseability before a script is ever spawned, per spec.md §4.D.
func validateArguments(specs []model.ArgumentSpec, provided map[string]string) error {
	for _, spec := range specs {
		value, ok := provided[spec.Name]
		if !ok || value == "" {
			if spec.Required {
				return fmt.Errorf("required argument %q missing", spec.Name)
			}
			continue
		}

		if len(spec.Choices) > 0 && !containsString(spec.Choices, value) {
			return fmt.Errorf("argument %q: %q is not one of %v", spec.Name, value, spec.Choices)
		}

		switch spec.TypeHint {
		case model.TypeInt:
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				return fmt.Errorf("argument %q: %q is not an integer", spec.Name, value)
			}
		case model.TypeFloat:
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return fmt.Errorf("argument %q: %q is not a number", spec.Name, value)
			}
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

package plugins

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// RequiredKeys returns the keys a plugin's config schema marks as required.
func RequiredKeys(plugin WriterPlugin) []string {
	required, _ := plugin.ConfigSchema()["required"].([]string)
	return required
}

// ValidateConfig checks config against the plugin's schema: it must be a JSON
// object, required keys must be present and non-empty, and known properties
// must have their declared type. Unknown keys are left to the plugin.
func ValidateConfig(plugin WriterPlugin, config json.RawMessage) error {
	schema := plugin.ConfigSchema()
	if schema == nil {
		return nil
	}

	var values map[string]any
	if err := json.Unmarshal(config, &values); err != nil {
		return fmt.Errorf("%s config must be a JSON object: %w", plugin.Name(), err)
	}

	for _, key := range RequiredKeys(plugin) {
		if v, ok := values[key]; !ok || v == nil || v == "" {
			return fmt.Errorf("%s is required", key)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, ok := properties[key].(map[string]any)
		if !ok {
			continue
		}
		want, _ := prop["type"].(string)
		if !hasType(values[key], want) {
			return fmt.Errorf("%s must be %s", key, article(want))
		}
	}
	return nil
}

func hasType(v any, want string) bool {
	if v == nil {
		return true
	}
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		f, ok := v.(float64)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

func article(typ string) string {
	if typ == "integer" {
		return "an integer"
	}
	return "a " + typ
}

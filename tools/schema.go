package tools

// JSON Schema helpers for tool inputs.

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property with optional description.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// NumberProperty creates a number property with optional description.
func NumberProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": description,
	}
}

// IntegerProperty creates an integer property with optional description.
func IntegerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// ObjectProperty creates a free-form object property.
func ObjectProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
	}
}

// WithThought adds a thought parameter to an existing schema.
// If requireThought is true, "thought" is added to the required array.
func WithThought(schema map[string]interface{}, requireThought bool) map[string]interface{} {
	// Clone schema
	result := make(map[string]interface{})
	for k, v := range schema {
		result[k] = v
	}

	// Copy properties too so the caller's map is left alone
	props := make(map[string]interface{})
	if existing, ok := result["properties"].(map[string]interface{}); ok {
		for k, v := range existing {
			props[k] = v
		}
	}
	result["properties"] = props

	// Add thought property
	props["thought"] = StringProperty(
		"Your reasoning about why you're using this tool and what you expect to accomplish. " +
			"For destructive operations, explain why the user wants it.",
	)

	if requireThought {
		required, _ := result["required"].([]string)
		result["required"] = append(append([]string{}, required...), "thought")
	}

	return result
}

// BuildSchemaWithThought creates an ObjectSchema and adds thought support in one call.
func BuildSchemaWithThought(properties map[string]interface{}, requireThought bool, required ...string) map[string]interface{} {
	schema := ObjectSchema(properties, required...)
	return WithThought(schema, requireThought)
}

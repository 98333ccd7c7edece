//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/careflow-ai/careflow/log"
)

// GenerateJSONSchema generates a JSON schema from a reflect.Type.
//
// Supported struct tags:
//   - json: field name, "-" to skip, omitempty makes the field optional
//   - jsonschema: "description=...", "enum=a,enum=b", "required"
func GenerateJSONSchema(t reflect.Type) *Schema {
	return generateSchema(t)
}

func generateSchema(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.Ptr:
		return generateSchema(t.Elem())
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: generateSchema(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: generateSchema(t.Elem())}
	case reflect.Struct:
		return generateStructSchema(t)
	default:
		return &Schema{Type: "object"}
	}
}

func generateStructSchema(t reflect.Type) *Schema {
	schema := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}
	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		fieldName := field.Name
		isOmitEmpty := false
		if jsonTag != "" {
			if commaIdx := strings.Index(jsonTag, ","); commaIdx != -1 {
				fieldName = jsonTag[:commaIdx]
				isOmitEmpty = strings.Contains(jsonTag[commaIdx:], "omitempty")
			} else {
				fieldName = jsonTag
			}
		}

		fieldSchema := generateSchema(field.Type)
		requiredByTag := applySchemaTag(field.Type, field.Tag, fieldSchema)
		if (field.Type.Kind() != reflect.Ptr && !isOmitEmpty) || requiredByTag {
			required = append(required, fieldName)
		}
		schema.Properties[fieldName] = fieldSchema
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return schema
}

// applySchemaTag parses the jsonschema struct tag into the schema and
// reports whether the field is explicitly marked required.
func applySchemaTag(fieldType reflect.Type, tag reflect.StructTag, schema *Schema) bool {
	jsonSchemaTag := tag.Get("jsonschema")
	if len(jsonSchemaTag) == 0 {
		return false
	}
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}

	requiredByTag := false
	for _, item := range strings.Split(jsonSchemaTag, ",") {
		kv := strings.SplitN(item, "=", 2)
		switch {
		case len(kv) == 2 && kv[0] == "description":
			schema.Description = kv[1]
		case len(kv) == 2 && kv[0] == "enum":
			appendEnum(fieldType, kv[1], schema)
		case len(kv) == 1 && kv[0] == "required":
			requiredByTag = true
		}
	}
	return requiredByTag
}

func appendEnum(fieldType reflect.Type, value string, schema *Schema) {
	switch fieldType.Kind() {
	case reflect.String:
		schema.Enum = append(schema.Enum, value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			log.Errorf("schema: parse enum value %q as integer: %v", value, err)
			return
		}
		schema.Enum = append(schema.Enum, v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Errorf("schema: parse enum value %q as number: %v", value, err)
			return
		}
		schema.Enum = append(schema.Enum, v)
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			log.Errorf("schema: parse enum value %q as bool: %v", value, err)
			return
		}
		schema.Enum = append(schema.Enum, v)
	default:
		log.Errorf("schema: enum tag unsupported for field type %v", fieldType)
	}
}

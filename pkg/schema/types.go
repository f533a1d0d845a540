package schema

import (
	"fmt"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Type defines the contract for input value validation.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "text", "int").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(v domain.Value) error
}

// --- Built-in Type Implementations ---

// TextType accepts Text values.
type TextType struct{}

func (t *TextType) Name() string { return "text" }

func (t *TextType) Validate(v domain.Value) error {
	if v.Kind() != domain.KindText {
		return fmt.Errorf("expected text, got %s", v.Kind())
	}
	return nil
}

// IntType accepts whole numbers and text holding one (dropdown options).
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(v domain.Value) error {
	switch v.Kind() {
	case domain.KindNumber:
		f, _ := v.AsNumber()
		if f != float64(int64(f)) {
			return fmt.Errorf("expected int, got number (not a whole number)")
		}
		return nil
	case domain.KindText:
		if _, ok := v.AsInt(); !ok {
			return fmt.Errorf("expected int, got text %q", v.String())
		}
		return nil
	}
	return fmt.Errorf("expected int, got %s", v.Kind())
}

// NumberType accepts Number values.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(v domain.Value) error {
	if v.Kind() != domain.KindNumber {
		return fmt.Errorf("expected number, got %s", v.Kind())
	}
	return nil
}

// BoolType accepts Bool values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(v domain.Value) error {
	if v.Kind() != domain.KindBool {
		return fmt.Errorf("expected bool, got %s", v.Kind())
	}
	return nil
}

// ListType validates lists of a specific element type.
type ListType struct {
	elemType Type
}

func (t *ListType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *ListType) Validate(v domain.Value) error {
	items, ok := v.AsList()
	if !ok {
		return fmt.Errorf("expected list, got %s", v.Kind())
	}
	for i, item := range items {
		if err := t.elemType.Validate(item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// OneOfType accepts text values from a fixed set of options.
type OneOfType struct {
	options []string
}

func (t *OneOfType) Name() string { return fmt.Sprintf("one_of%v", t.options) }

func (t *OneOfType) Validate(v domain.Value) error {
	s, ok := v.AsText()
	if !ok || v.Kind() != domain.KindText {
		return fmt.Errorf("expected text, got %s", v.Kind())
	}
	for _, o := range t.options {
		if o == s {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %v", s, t.options)
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(domain.Value) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(v domain.Value) error {
	return t.validate(v)
}

// --- Factory Functions ---

// Text creates a text type validator.
func Text() Type { return &TextType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// Number creates a number type validator.
func Number() Type { return &NumberType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// List creates a list type validator for elements of the given type.
func List(elemType Type) Type {
	return &ListType{elemType: elemType}
}

// OneOf creates a validator for a fixed set of text options.
func OneOf(options ...string) Type {
	return &OneOfType{options: append([]string(nil), options...)}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(domain.Value) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ParseType converts a type name to a Type.
// Supports "text", "int", "number", "bool" and lists of them: "[text]", "[int]".
func ParseType(typeStr string) (Type, error) {
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return List(elemType), nil
	}

	switch typeStr {
	case "text", "string":
		return Text(), nil
	case "int":
		return Int(), nil
	case "number", "float":
		return Number(), nil
	case "bool":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// ParseTypeMap converts a map of cell ids to type names into a Schema.
// Example: {"year_dropdown.value": "int", "country_multi.value": "[text]"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		id, err := domain.ParseCellID(key)
		if err != nil {
			return nil, err
		}
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", key, err)
		}
		result[id] = t
	}
	return result, nil
}

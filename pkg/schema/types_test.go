package schema

import (
	"fmt"
	"testing"

	"github.com/aretw0/mosaic/pkg/domain"
)

func TestBuiltinTypes(t *testing.T) {
	tests := []struct {
		typ     Type
		value   domain.Value
		wantErr bool
	}{
		{Text(), domain.Text("Brazil"), false},
		{Text(), domain.Text(""), false},
		{Text(), domain.Int(2010), true},
		{Text(), domain.Markdown("# no"), true},
		{Int(), domain.Int(2010), false},
		{Int(), domain.Text("2010"), false},
		{Int(), domain.Number(3.5), true},
		{Int(), domain.Text("twenty"), true},
		{Int(), domain.Bool(true), true},
		{Number(), domain.Number(3.5), false},
		{Number(), domain.Text("3.5"), true},
		{Bool(), domain.Bool(false), false},
		{Bool(), domain.Int(0), true},
		{Bool(), domain.Unset(), true},
	}

	for _, tt := range tests {
		err := tt.typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.Validate(%v) error = %v, wantErr %v", tt.typ.Name(), tt.value, err, tt.wantErr)
		}
	}
}

func TestListType(t *testing.T) {
	typ := List(Text())

	if typ.Name() != "[text]" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "[text]")
	}
	if err := typ.Validate(domain.Strings("Brazil", "Chile")); err != nil {
		t.Errorf("Validate(strings) error = %v", err)
	}
	if err := typ.Validate(domain.List()); err != nil {
		t.Errorf("Validate(empty) error = %v", err)
	}

	err := typ.Validate(domain.List(domain.Text("Brazil"), domain.Int(1)))
	if err == nil {
		t.Fatal("Validate() should reject a mixed list")
	}
	if want := "element 1: expected text, got number"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
	if err := typ.Validate(domain.Text("Brazil")); err == nil {
		t.Error("Validate() should reject a scalar")
	}
}

func TestOneOfType(t *testing.T) {
	typ := OneOf("SI.POV.GINI", "SI.POV.NAHC")

	if err := typ.Validate(domain.Text("SI.POV.GINI")); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := typ.Validate(domain.Text("NY.GDP")); err == nil {
		t.Error("Validate() should reject an unknown option")
	}
	if err := typ.Validate(domain.Markdown("SI.POV.GINI")); err == nil {
		t.Error("Validate() should reject non-text kinds")
	}
}

func TestCustomType(t *testing.T) {
	positive := Custom("positive", func(v domain.Value) error {
		n, ok := v.AsNumber()
		if !ok || n <= 0 {
			return fmt.Errorf("must be positive")
		}
		return nil
	})

	if positive.Name() != "positive" {
		t.Errorf("Name() = %q", positive.Name())
	}
	if err := positive.Validate(domain.Int(3)); err != nil {
		t.Errorf("Validate(3) error = %v", err)
	}
	if err := positive.Validate(domain.Int(-1)); err == nil {
		t.Error("Validate(-1) should fail")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"text", "text", false},
		{"string", "text", false},
		{"int", "int", false},
		{"float", "number", false},
		{"bool", "bool", false},
		{"[int]", "[int]", false},
		{"[[text]]", "[[text]]", false},
		{"date", "", true},
		{"[date]", "", true},
	}

	for _, tt := range tests {
		typ, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && typ.Name() != tt.want {
			t.Errorf("ParseType(%q).Name() = %q, want %q", tt.input, typ.Name(), tt.want)
		}
	}
}

func TestParseTypeMap(t *testing.T) {
	s, err := ParseTypeMap(map[string]string{
		"year_dropdown.value": "int",
		"country_multi.value": "[text]",
	})
	if err != nil {
		t.Fatalf("ParseTypeMap() error = %v", err)
	}
	if got := s[domain.Cell("country_multi", "value")].Name(); got != "[text]" {
		t.Errorf("country_multi.value = %q", got)
	}

	if _, err := ParseTypeMap(map[string]string{"nodot": "int"}); err == nil {
		t.Error("ParseTypeMap() should reject a malformed cell id")
	}
	if _, err := ParseTypeMap(map[string]string{"a.b": "date"}); err == nil {
		t.Error("ParseTypeMap() should reject an unknown type")
	}
}

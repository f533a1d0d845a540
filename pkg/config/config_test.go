package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/mosaic/pkg/config"
	"github.com/aretw0/mosaic/pkg/dashboard"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/registry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, args domain.Args) (domain.Result, error) {
	return domain.Update(args.Input(0)), nil
}

func newRegistry() *registry.Registry {
	reg := registry.NewRegistry()
	reg.Register("echo", echo)
	return reg
}

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "def.yaml", `
name: demo
cells:
  slider.value: 3
  picker.value: [a, b]
handlers:
  second:
    inputs: [first.out]
    outputs: [second.out]
    fn: echo
  first:
    inputs: [slider.value]
    state: [picker.value]
    outputs: [first.out]
    fn: echo
    async: true
    timeout: 1.5
    prevent_initial_call: true
`)
	def, err := config.Load(path, newRegistry())
	require.NoError(t, err)

	assert.Equal(t, "demo", def.Name)
	assert.True(t, def.Cells[domain.Cell("slider", "value")].Equal(domain.Int(3)))
	assert.True(t, def.Cells[domain.Cell("picker", "value")].Equal(domain.Strings("a", "b")))

	require.Len(t, def.Handlers, 2)
	first := def.Handlers[0]
	assert.Equal(t, domain.HandlerID("first"), first.ID, "map entries register in id order")
	assert.Equal(t, domain.MustParseCellIDs("picker.value"), first.State)
	assert.True(t, first.Async)
	assert.True(t, first.PreventInitialCall)
	assert.Equal(t, 1500*time.Millisecond, first.Timeout)
	assert.NotNil(t, first.Fn)
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "def.json", `{
  "name": "demo",
  "cells": {"in.value": "x"},
  "handlers": [
    {"id": "echo", "inputs": ["in.value"], "outputs": ["out.value"], "timeout": "250ms"}
  ]
}`)
	def, err := config.Load(path, newRegistry())
	require.NoError(t, err)
	require.Len(t, def.Handlers, 1)
	assert.Equal(t, 250*time.Millisecond, def.Handlers[0].Timeout)
	assert.NotNil(t, def.Handlers[0].Fn, "fn defaults to the handler id")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown fn", "handlers:\n  a:\n    inputs: [x.v]\n    outputs: [y.v]\n    fn: nope\n", "unknown handler function"},
		{"unknown field", "handlers:\n  a:\n    inputz: [x.v]\n    outputs: [y.v]\n    fn: echo\n", "inputz"},
		{"bad cell", "handlers:\n  a:\n    inputs: [nodot]\n    outputs: [y.v]\n    fn: echo\n", "nodot"},
		{"list without id", "handlers:\n  - inputs: [x.v]\n    outputs: [y.v]\n", "missing id"},
		{"mismatched id", "handlers:\n  a:\n    id: b\n    outputs: [y.v]\n    fn: echo\n", "does not match"},
		{"object cell without kind", "cells:\n  x.v: {a: 1}\n", "kind"},
		{"handlers scalar", "handlers: 3\n", "map or a list"},
		{"empty", "", "empty definition"},
		{"no outputs", "handlers:\n  a:\n    inputs: [x.v]\n    fn: echo\n", "at least one output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(write(t, "def.yaml", tt.content), newRegistry())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), newRegistry())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWithSchema(t *testing.T) {
	path := write(t, "def.yaml", `
cells:
  slider.value: 3
handlers:
  a:
    inputs: [slider.value]
    outputs: [a.out]
    fn: echo
schema:
  slider.value: int
`)
	_, s, err := config.LoadWithSchema(path, newRegistry())
	require.NoError(t, err)
	require.Contains(t, s, domain.Cell("slider", "value"))
	assert.Equal(t, "int", s[domain.Cell("slider", "value")].Name())

	for name, content := range map[string]string{
		"unknown type":     "cells:\n  x.v: 1\nschema:\n  x.v: date\n",
		"not an input":     "cells:\n  x.v: 1\nschema:\n  y.v: int\n",
		"initial mismatch": "cells:\n  x.v: true\nschema:\n  x.v: int\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := config.LoadWithSchema(write(t, "def.yaml", content), newRegistry())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid schema")
		})
	}
}

func TestLoad_PovertyExampleMatchesBuiltin(t *testing.T) {
	data, err := dashboard.LoadData("../dashboard/testdata")
	require.NoError(t, err)
	db := dashboard.New(data)
	reg := registry.NewRegistry()
	db.Register(reg)

	fromFile, err := config.Load("../../examples/poverty/dashboard.yaml", reg)
	require.NoError(t, err)
	builtin, err := db.Definition()
	require.NoError(t, err)

	type shape struct {
		ID      domain.HandlerID
		Inputs  []domain.CellID
		State   []domain.CellID
		Outputs []domain.CellID
		Async   bool
	}
	shapes := func(def domain.Definition) []shape {
		out := make([]shape, len(def.Handlers))
		for i, h := range def.Handlers {
			out[i] = shape{h.ID, h.Inputs, h.State, h.Outputs, h.Async}
		}
		return out
	}
	if diff := cmp.Diff(shapes(builtin), shapes(fromFile), cmp.Comparer(func(a, b []domain.CellID) bool {
		return len(a) == len(b) && (len(a) == 0 || cmp.Equal(a, b))
	})); diff != "" {
		t.Errorf("handler graph mismatch (-builtin +file):\n%s", diff)
	}

	set := func(def domain.Definition) map[domain.CellID]domain.Value {
		out := make(map[domain.CellID]domain.Value)
		for id, v := range def.Cells {
			if !v.IsUnset() {
				out[id] = v
			}
		}
		return out
	}
	valueEq := cmp.Comparer(func(a, b domain.Value) bool { return a.Equal(b) })
	if diff := cmp.Diff(set(builtin), set(fromFile), valueEq); diff != "" {
		t.Errorf("initial values mismatch (-builtin +file):\n%s", diff)
	}
}

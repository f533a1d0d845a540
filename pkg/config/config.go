// Package config loads dashboard definitions from YAML or JSON files.
//
// A definition file names its cells and handlers; handler functions are
// referred to by name and resolved through a registry:
//
//	name: poverty
//	cells:
//	  year_dropdown.value: "2010"
//	handlers:
//	  population_chart:
//	    inputs: [year_dropdown.value]
//	    outputs: [population_chart.figure]
//	    fn: population_chart
//	schema:
//	  year_dropdown.value: int
//
// Handlers may be given as a map keyed by id (registered in id order) or as a
// list of entries with an explicit id (registered in list order).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/registry"
	"github.com/aretw0/mosaic/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// File is the decoded shape of a definition file.
type File struct {
	Name     string         `mapstructure:"name"`
	Cells    map[string]any    `mapstructure:"cells"`
	Schema   map[string]string `mapstructure:"schema"`
	Handlers []Handler         `mapstructure:"-"`
}

// Handler is one handler entry of a definition file: the wire description
// of the handler plus the registry name of its function.
type Handler struct {
	dto.HandlerInfo `mapstructure:",squash"`
	Fn              string `mapstructure:"fn"`
}

// Load reads and resolves a definition file. The format follows the file
// extension: .json is JSON, anything else YAML.
func Load(path string, reg *registry.Registry) (domain.Definition, error) {
	def, _, err := LoadWithSchema(path, reg)
	return def, err
}

// LoadWithSchema is Load that also returns the input schema of the file.
// The schema is nil when the file declares none.
func LoadWithSchema(path string, reg *registry.Registry) (domain.Definition, schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Definition{}, nil, fmt.Errorf("failed to read definition: %w", err)
	}
	f, err := Parse(data, strings.ToLower(filepath.Ext(path)) == ".json")
	if err != nil {
		return domain.Definition{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	def, err := f.Resolve(reg)
	if err != nil {
		return domain.Definition{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	s, err := f.InputSchema(def)
	if err != nil {
		return domain.Definition{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, s, nil
}

// InputSchema parses the schema section and checks it against def.
func (f *File) InputSchema(def domain.Definition) (schema.Schema, error) {
	if len(f.Schema) == 0 {
		return nil, nil
	}
	s, err := schema.ParseTypeMap(f.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if err := schema.ValidateDefinition(s, def); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return s, nil
}

// Parse decodes raw definition bytes.
func Parse(data []byte, isJSON bool) (*File, error) {
	var raw map[string]any
	if isJSON {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse definition json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse definition yaml: %w", err)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("empty definition")
	}

	handlers, err := decodeHandlers(raw["handlers"])
	if err != nil {
		return nil, err
	}
	delete(raw, "handlers")

	var f File
	if err := decode(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	f.Handlers = handlers
	return &f, nil
}

func decodeHandlers(raw any) ([]Handler, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]Handler, 0, len(v))
		for i, item := range v {
			var h Handler
			if err := decode(item, &h); err != nil {
				return nil, fmt.Errorf("handler %d: %w", i, err)
			}
			if h.ID == "" {
				return nil, fmt.Errorf("handler %d: missing id", i)
			}
			out = append(out, h)
		}
		return out, nil
	case map[string]any:
		ids := make([]string, 0, len(v))
		for id := range v {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out := make([]Handler, 0, len(v))
		for _, id := range ids {
			var h Handler
			if err := decode(v[id], &h); err != nil {
				return nil, fmt.Errorf("handler %s: %w", id, err)
			}
			if h.ID != "" && h.ID != id {
				return nil, fmt.Errorf("handler %s: id %q does not match its key", id, h.ID)
			}
			h.ID = id
			out = append(out, h)
		}
		return out, nil
	}
	return nil, fmt.Errorf("handlers must be a map or a list, got %T", raw)
}

func decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHook,
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// secondsToDurationHook reads bare numbers as seconds.
func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// Resolve turns the file into a definition, looking functions up in reg.
func (f *File) Resolve(reg *registry.Registry) (domain.Definition, error) {
	def := domain.Definition{
		Name:  f.Name,
		Cells: make(map[domain.CellID]domain.Value, len(f.Cells)),
	}
	for key, raw := range f.Cells {
		id, err := domain.ParseCellID(key)
		if err != nil {
			return domain.Definition{}, err
		}
		v, err := domain.FromAny(normalize(raw))
		if err != nil {
			return domain.Definition{}, fmt.Errorf("cell %s: %w", id, err)
		}
		def.Cells[id] = v
	}

	for _, h := range f.Handlers {
		spec, err := h.spec(reg)
		if err != nil {
			return domain.Definition{}, err
		}
		def.Handlers = append(def.Handlers, spec)
	}
	if err := def.Validate(); err != nil {
		return domain.Definition{}, err
	}
	return def, nil
}

func (h Handler) spec(reg *registry.Registry) (domain.HandlerSpec, error) {
	spec := domain.HandlerSpec{
		ID:                 domain.HandlerID(h.ID),
		Async:              h.Async,
		Timeout:            h.Timeout,
		PreventInitialCall: h.PreventInitialCall,
	}
	var err error
	if spec.Inputs, err = domain.ParseCellIDs(h.Inputs); err != nil {
		return spec, fmt.Errorf("handler %s inputs: %w", h.ID, err)
	}
	if spec.State, err = domain.ParseCellIDs(h.State); err != nil {
		return spec, fmt.Errorf("handler %s state: %w", h.ID, err)
	}
	if spec.Outputs, err = domain.ParseCellIDs(h.Outputs); err != nil {
		return spec, fmt.Errorf("handler %s outputs: %w", h.ID, err)
	}

	name := h.Fn
	if name == "" {
		name = h.ID
	}
	if spec.Fn, err = reg.Lookup(name); err != nil {
		return spec, fmt.Errorf("handler %s: %w", h.ID, err)
	}
	return spec, nil
}

// normalize rewrites the map[any]any nodes some YAML inputs produce.
func normalize(x any) any {
	switch t := x.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[fmt.Sprint(k)] = normalize(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = normalize(v)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = normalize(v)
		}
		return out
	}
	return x
}

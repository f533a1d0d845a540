package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind enumerates the closed set of value variants a cell can hold.
type Kind uint8

const (
	KindUnset Kind = iota
	KindNumber
	KindText
	KindBool
	KindList
	KindRecords
	KindFigure
	KindTable
	KindMarkdown
	KindNoData
	// kindNoUpdate marks a single suppressed output slot. It is never stored.
	kindNoUpdate
)

var kindNames = map[Kind]string{
	KindUnset:    "unset",
	KindNumber:   "number",
	KindText:     "text",
	KindBool:     "bool",
	KindList:     "list",
	KindRecords:  "records",
	KindFigure:   "figure",
	KindTable:    "table",
	KindMarkdown: "markdown",
	KindNoData:   "no_data",
	kindNoUpdate: "no_update",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func parseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && k != kindNoUpdate {
			return k, nil
		}
	}
	return KindUnset, fmt.Errorf("unknown value kind %q", s)
}

// Record is one row of a records or table value.
type Record map[string]Value

// Value is an immutable cell value.
// The zero Value is Unset.
type Value struct {
	kind    Kind
	num     float64
	text    string
	flag    bool
	list    []Value
	records []Record
	figure  *Figure
	table   *Table
}

// Unset returns the empty value.
func Unset() Value { return Value{} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int wraps an integer as a Number.
func Int(i int) Value { return Number(float64(i)) }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Markdown wraps markdown source meant for rich rendering.
func Markdown(s string) Value { return Value{kind: KindMarkdown, text: s} }

// NoData is an explicit placeholder telling the renderer there is nothing to show.
func NoData(reason string) Value { return Value{kind: KindNoData, text: reason} }

// NoUpdate marks a single output of a multi-output handler as suppressed.
func NoUpdate() Value { return Value{kind: kindNoUpdate} }

// List wraps a sequence of values.
func List(items ...Value) Value {
	out := make([]Value, len(items))
	for i, v := range items {
		out[i] = v.Clone()
	}
	return Value{kind: KindList, list: out}
}

// Strings builds a List of Text values.
func Strings(items ...string) Value {
	out := make([]Value, len(items))
	for i, s := range items {
		out[i] = Text(s)
	}
	return Value{kind: KindList, list: out}
}

// Records wraps a list of records.
func Records(rows ...Record) Value {
	return Value{kind: KindRecords, records: cloneRecords(rows)}
}

// Fig wraps a figure description. The figure is copied.
func Fig(f Figure) Value {
	c := f.Clone()
	return Value{kind: KindFigure, figure: &c}
}

// Tab wraps a table description. The table is copied.
func Tab(t Table) Value {
	c := t.Clone()
	return Value{kind: KindTable, table: &c}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsUnset reports whether the value was never set.
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// IsNoUpdate reports whether the value is the per-output suppression marker.
func (v Value) IsNoUpdate() bool { return v.kind == kindNoUpdate }

// AsNumber returns the float for Number values.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsInt returns the number truncated to an int.
// Text holding a number (e.g. a dropdown option "2010") is accepted too.
func (v Value) AsInt() (int, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return int(v.num), true
	case KindText:
		i, err := strconv.Atoi(strings.TrimSpace(v.text))
		return i, err == nil
	}
	return 0, false
}

// AsText returns the string for Text, Markdown and NoData values.
func (v Value) AsText() (string, bool) {
	switch v.kind {
	case KindText, KindMarkdown, KindNoData:
		return v.text, true
	}
	return "", false
}

// AsBool returns the boolean for Bool values.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// AsList returns a copy of the items for List values.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	for i, item := range v.list {
		out[i] = item.Clone()
	}
	return out, true
}

// AsStrings returns the items of a List as strings.
// A single Text value is treated as a one-item list.
func (v Value) AsStrings() ([]string, bool) {
	switch v.kind {
	case KindText:
		return []string{v.text}, true
	case KindList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			switch item.kind {
			case KindText:
				out = append(out, item.text)
			case KindNumber:
				out = append(out, strconv.FormatFloat(item.num, 'f', -1, 64))
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

// AsInts returns the items of a List as ints.
// A single Number is treated as a one-item list.
func (v Value) AsInts() ([]int, bool) {
	if v.kind == KindNumber {
		i, ok := v.AsInt()
		return []int{i}, ok
	}
	if v.kind != KindList {
		return nil, false
	}
	out := make([]int, 0, len(v.list))
	for _, item := range v.list {
		i, ok := item.AsInt()
		if !ok {
			return nil, false
		}
		out = append(out, i)
	}
	return out, true
}

// AsRecords returns a copy of the rows for Records values.
func (v Value) AsRecords() ([]Record, bool) {
	if v.kind != KindRecords {
		return nil, false
	}
	return cloneRecords(v.records), true
}

// AsFigure returns a copy of the figure.
func (v Value) AsFigure() (Figure, bool) {
	if v.kind != KindFigure || v.figure == nil {
		return Figure{}, false
	}
	return v.figure.Clone(), true
}

// AsTable returns a copy of the table.
func (v Value) AsTable() (Table, bool) {
	if v.kind != KindTable || v.table == nil {
		return Table{}, false
	}
	return v.table.Clone(), true
}

// Reason returns the explanation carried by a NoData value.
func (v Value) Reason() string {
	if v.kind != KindNoData {
		return ""
	}
	return v.text
}

// Clone returns a deep copy. Scalars are returned as is.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, item := range v.list {
			out[i] = item.Clone()
		}
		v.list = out
	case KindRecords:
		v.records = cloneRecords(v.records)
	case KindFigure:
		if v.figure != nil {
			c := v.figure.Clone()
			v.figure = &c
		}
	case KindTable:
		if v.table != nil {
			c := v.table.Clone()
			v.table = &c
		}
	}
	return v
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUnset, kindNoUpdate:
		return true
	case KindNumber:
		return v.num == other.num || (math.IsNaN(v.num) && math.IsNaN(other.num))
	case KindText, KindMarkdown, KindNoData:
		return v.text == other.text
	case KindBool:
		return v.flag == other.flag
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindRecords:
		return recordsEqual(v.records, other.records)
	case KindFigure:
		return reflect.DeepEqual(v.figure, other.figure)
	case KindTable:
		return reflect.DeepEqual(v.table, other.table)
	}
	return false
}

// String renders a short human-readable form, used in logs and text renderers.
func (v Value) String() string {
	switch v.kind {
	case KindUnset:
		return "<unset>"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText, KindMarkdown:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindNoData:
		return "<no data: " + v.text + ">"
	case kindNoUpdate:
		return "<no update>"
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindRecords:
		return fmt.Sprintf("<%d records>", len(v.records))
	case KindFigure:
		return fmt.Sprintf("<figure %s %q>", v.figure.Type, v.figure.Title)
	case KindTable:
		return fmt.Sprintf("<table %d cols x %d rows>", len(v.table.Columns), len(v.table.Rows))
	}
	return "<invalid>"
}

// Empty reports whether a selection carries nothing to compute on:
// unset, no-data, blank text, or an empty list.
// Handlers use it to decide when to Suppress.
func Empty(v Value) bool {
	switch v.kind {
	case KindUnset, KindNoData:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	case KindList:
		return len(v.list) == 0
	case KindRecords:
		return len(v.records) == 0
	}
	return false
}

// --- JSON ---

type valueJSON struct {
	Kind    string   `json:"kind"`
	Number  *float64 `json:"number,omitempty"`
	Text    *string  `json:"text,omitempty"`
	Bool    *bool    `json:"bool,omitempty"`
	List    []Value  `json:"list,omitempty"`
	Records []Record `json:"records,omitempty"`
	Figure  *Figure  `json:"figure,omitempty"`
	Table   *Table   `json:"table,omitempty"`
}

// MarshalJSON encodes the value as {"kind": ..., <payload>}.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == kindNoUpdate {
		return nil, fmt.Errorf("no_update marker cannot be serialized")
	}
	out := valueJSON{Kind: v.kind.String()}
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			// JSON has no NaN; encode as no_data so the client renders a placeholder.
			reason := "not a number"
			out = valueJSON{Kind: KindNoData.String(), Text: &reason}
			break
		}
		n := v.num
		out.Number = &n
	case KindText, KindMarkdown, KindNoData:
		t := v.text
		out.Text = &t
	case KindBool:
		b := v.flag
		out.Bool = &b
	case KindList:
		out.List = v.list
		if out.List == nil {
			out.List = []Value{}
		}
	case KindRecords:
		out.Records = v.records
	case KindFigure:
		out.Figure = v.figure
	case KindTable:
		out.Table = v.table
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the {"kind": ...} form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := parseKind(raw.Kind)
	if err != nil {
		return err
	}
	out := Value{kind: kind}
	switch kind {
	case KindNumber:
		if raw.Number == nil {
			return fmt.Errorf("number value without payload")
		}
		out.num = *raw.Number
	case KindText, KindMarkdown, KindNoData:
		if raw.Text != nil {
			out.text = *raw.Text
		}
	case KindBool:
		if raw.Bool != nil {
			out.flag = *raw.Bool
		}
	case KindList:
		out.list = raw.List
		if out.list == nil {
			out.list = []Value{}
		}
	case KindRecords:
		out.records = raw.Records
	case KindFigure:
		if raw.Figure == nil {
			return fmt.Errorf("figure value without payload")
		}
		out.figure = raw.Figure
	case KindTable:
		if raw.Table == nil {
			return fmt.Errorf("table value without payload")
		}
		out.table = raw.Table
	}
	*v = out
	return nil
}

// FromAny converts loosely typed data (decoded JSON/YAML of external events)
// into a Value. Maps carrying a "kind" key are decoded as tagged values.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Unset(), nil
	case Value:
		return t, nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(t), nil
	case int64:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case []string:
		return Strings(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		if _, ok := t["kind"]; !ok {
			return Value{}, fmt.Errorf("unsupported object value without \"kind\"")
		}
		data, err := json.Marshal(t)
		if err != nil {
			return Value{}, err
		}
		var v Value
		if err := json.Unmarshal(data, &v); err != nil {
			return Value{}, err
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", x)
}

func cloneRecords(rows []Record) []Record {
	if rows == nil {
		return nil
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

func recordsEqual(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for k, v := range a[i] {
			w, ok := b[i][k]
			if !ok || !v.Equal(w) {
				return false
			}
		}
	}
	return true
}

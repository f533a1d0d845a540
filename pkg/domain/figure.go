package domain

// Figure types produced by the dashboard handlers.
const (
	FigureEmpty      = "empty"
	FigureBar        = "bar"
	FigureChoropleth = "choropleth"
	FigureHistogram  = "histogram"
	FigureScatter    = "scatter"
)

// Figure is a renderer-agnostic chart description.
// The engine treats it as opaque; only handlers and renderers interpret it.
type Figure struct {
	Type        string       `json:"type"`
	Title       string       `json:"title,omitempty"`
	Traces      []Trace      `json:"traces,omitempty"`
	Layout      Layout       `json:"layout"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Trace is one data series of a figure.
type Trace struct {
	Name        string    `json:"name,omitempty"`
	Orientation string    `json:"orientation,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Values      []float64 `json:"values,omitempty"`
	Colors      []string  `json:"colors,omitempty"`
	Sizes       []float64 `json:"sizes,omitempty"`
	// ColorValues drives a continuous colour scale, one value per label.
	ColorValues []float64 `json:"color_values,omitempty"`
	Facet       string    `json:"facet,omitempty"`
	Bins        int       `json:"bins,omitempty"`
}

// Layout holds presentation hints.
type Layout struct {
	Height     int               `json:"height,omitempty"`
	Width      int               `json:"width,omitempty"`
	PaperColor string            `json:"paper_color,omitempty"`
	PlotColor  string            `json:"plot_color,omitempty"`
	BarMode    string            `json:"bar_mode,omitempty"`
	XAxisTitle string            `json:"x_axis_title,omitempty"`
	YAxisTitle string            `json:"y_axis_title,omitempty"`
	TickSuffix string            `json:"tick_suffix,omitempty"`
	ColorScale string            `json:"color_scale,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Annotation is a free-floating text label.
type Annotation struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Clone returns a deep copy of the figure.
func (f Figure) Clone() Figure {
	out := f
	if f.Traces != nil {
		out.Traces = make([]Trace, len(f.Traces))
		for i, t := range f.Traces {
			out.Traces[i] = t.clone()
		}
	}
	if f.Annotations != nil {
		out.Annotations = append([]Annotation(nil), f.Annotations...)
	}
	if f.Layout.Extra != nil {
		out.Layout.Extra = make(map[string]string, len(f.Layout.Extra))
		for k, v := range f.Layout.Extra {
			out.Layout.Extra[k] = v
		}
	}
	return out
}

func (t Trace) clone() Trace {
	out := t
	out.Labels = append([]string(nil), t.Labels...)
	out.Values = append([]float64(nil), t.Values...)
	out.Colors = append([]string(nil), t.Colors...)
	out.Sizes = append([]float64(nil), t.Sizes...)
	out.ColorValues = append([]float64(nil), t.ColorValues...)
	return out
}

// TableOptions mirrors the interactive table features of the dashboard.
type TableOptions struct {
	Sortable     bool   `json:"sortable,omitempty"`
	Filterable   bool   `json:"filterable,omitempty"`
	ExportFormat string `json:"export_format,omitempty"`
	Height       string `json:"height,omitempty"`
}

// Table is a renderer-agnostic tabular output.
type Table struct {
	Columns []string     `json:"columns"`
	Rows    []Record     `json:"rows"`
	Options TableOptions `json:"options"`
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := t
	out.Columns = append([]string(nil), t.Columns...)
	out.Rows = cloneRecords(t.Rows)
	return out
}

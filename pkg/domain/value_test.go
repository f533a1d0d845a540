package domain_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCellID(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.CellID
		wantErr bool
	}{
		{in: "year_dropdown.value", want: domain.Cell("year_dropdown", "value")},
		{in: "tabs.main.active_tab", want: domain.Cell("tabs.main", "active_tab")},
		{in: "  chart.figure ", want: domain.Cell("chart", "figure")},
		{in: "nodot", wantErr: true},
		{in: ".value", wantErr: true},
		{in: "chart.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseCellID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCellID_JSONMapKey(t *testing.T) {
	in := map[domain.CellID]int{domain.Cell("a", "value"): 1}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a.value": 1}`, string(data))

	var out map[domain.CellID]int
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestValue_Accessors(t *testing.T) {
	n, ok := domain.Number(2.5).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 2.5, n)

	_, ok = domain.Text("x").AsNumber()
	assert.False(t, ok, "text is not a number")

	i, ok := domain.Text("2010").AsInt()
	assert.True(t, ok, "numeric text converts to int")
	assert.Equal(t, 2010, i)

	ss, ok := domain.Strings("a", "b").AsStrings()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ss)

	ints, ok := domain.List(domain.Int(1), domain.Text("2")).AsInts()
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, ints)

	assert.Equal(t, "boom", domain.NoData("boom").Reason())
	assert.True(t, domain.Unset().IsUnset())
	assert.True(t, domain.NoUpdate().IsNoUpdate())
}

func TestValue_Empty(t *testing.T) {
	assert.True(t, domain.Empty(domain.Unset()))
	assert.True(t, domain.Empty(domain.Text("  ")))
	assert.True(t, domain.Empty(domain.List()))
	assert.True(t, domain.Empty(domain.NoData("none")))
	assert.False(t, domain.Empty(domain.Int(0)), "zero is a valid selection")
	assert.False(t, domain.Empty(domain.Strings("Chad")))
}

func TestValue_FigureIsCopied(t *testing.T) {
	fig := domain.Figure{Type: domain.FigureBar, Title: "before", Traces: []domain.Trace{{Labels: []string{"a"}, Values: []float64{1}}}}
	v := domain.Fig(fig)

	// Mutating the caller's figure after wrapping must not leak into the value.
	fig.Title = "after"
	fig.Traces[0].Values[0] = 99

	got, ok := v.AsFigure()
	require.True(t, ok)
	assert.Equal(t, "before", got.Title)
	assert.Equal(t, 1.0, got.Traces[0].Values[0])

	// Neither does mutating what AsFigure returned.
	got.Traces[0].Labels[0] = "z"
	again, _ := v.AsFigure()
	assert.Equal(t, "a", again.Traces[0].Labels[0])
}

func TestValue_JSONRoundTrip(t *testing.T) {
	values := []domain.Value{
		domain.Unset(),
		domain.Number(3),
		domain.Text("hello"),
		domain.Bool(true),
		domain.Markdown("## title"),
		domain.NoData("no rows"),
		domain.List(domain.Int(1), domain.Text("x")),
		domain.Records(domain.Record{"Country Name": domain.Text("Chad"), "year": domain.Int(2010)}),
		domain.Fig(domain.Figure{Type: domain.FigureBar, Title: "t", Layout: domain.Layout{Height: 200}}),
		domain.Tab(domain.Table{Columns: []string{"a"}, Rows: []domain.Record{{"a": domain.Int(1)}}}),
	}
	for _, v := range values {
		t.Run(v.Kind().String(), func(t *testing.T) {
			data, err := json.Marshal(v)
			require.NoError(t, err)
			var back domain.Value
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, v.Equal(back), "round trip of %s gave %s", v, back)
		})
	}
}

func TestValue_MarshalNaNAsNoData(t *testing.T) {
	data, err := json.Marshal(domain.Number(math.NaN()))
	require.NoError(t, err)
	var back domain.Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, domain.KindNoData, back.Kind())
}

func TestValue_NoUpdateNotSerializable(t *testing.T) {
	_, err := json.Marshal(domain.NoUpdate())
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`["2010", 5, true, null]`), &decoded))

	v, err := domain.FromAny(decoded)
	require.NoError(t, err)
	items, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, items, 4)
	assert.Equal(t, domain.KindText, items[0].Kind())
	assert.Equal(t, domain.KindNumber, items[1].Kind())
	assert.Equal(t, domain.KindBool, items[2].Kind())
	assert.True(t, items[3].IsUnset())

	tagged, err := domain.FromAny(map[string]any{"kind": "markdown", "text": "# hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindMarkdown, tagged.Kind())

	_, err = domain.FromAny(map[string]any{"x": 1})
	assert.Error(t, err)
}

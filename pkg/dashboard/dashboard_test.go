package dashboard_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/pkg/dashboard"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadData(t *testing.T) *dashboard.Data {
	t.Helper()
	data, err := dashboard.LoadData("testdata")
	require.NoError(t, err)
	return data
}

func startEngine(t *testing.T, opts ...mosaic.Option) *mosaic.Engine {
	t.Helper()
	def, err := dashboard.New(loadData(t)).Definition()
	require.NoError(t, err)

	engine, err := mosaic.New(def, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	_, err = engine.Start(context.Background())
	require.NoError(t, err)
	wait(t, engine)
	return engine
}

func wait(t *testing.T, e *mosaic.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

func figure(t *testing.T, e *mosaic.Engine, cell string) domain.Figure {
	t.Helper()
	v, ok := e.Get(domain.MustParseCellID(cell))
	require.True(t, ok, cell)
	fig, ok := v.AsFigure()
	require.True(t, ok, "%s holds %s", cell, v.Kind())
	return fig
}

func TestPopulationChart_YearUpdatesOnce(t *testing.T) {
	var (
		mu      sync.Mutex
		updates int
	)
	hooks := domain.LifecycleHooks{OnHandlerEnd: func(_ context.Context, ev *domain.HandlerEvent) {
		if ev.Handler == "population_chart" && ev.Outcome == domain.OutcomeUpdated {
			mu.Lock()
			updates++
			mu.Unlock()
		}
	}}
	engine := startEngine(t, mosaic.WithLifecycleHooks(hooks))
	mu.Lock()
	updates = 0
	mu.Unlock()

	report, err := engine.Set(context.Background(), domain.Cell("year_dropdown", "value"), domain.Int(2010))
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"population_chart"}, report.Executed)
	assert.Equal(t, domain.MustParseCellIDs("year_dropdown.value", "population_chart.figure"), report.Changed)

	mu.Lock()
	assert.Equal(t, 1, updates)
	mu.Unlock()

	fig := figure(t, engine, "population_chart.figure")
	assert.Equal(t, domain.FigureBar, fig.Type)
	assert.Equal(t, "Top twenty countries by population - 2010", fig.Title)
	require.Len(t, fig.Traces, 1)
	tr := fig.Traces[0]
	require.Len(t, tr.Labels, dashboard.TopCountries)
	assert.Equal(t, "Country22", tr.Labels[0])
	assert.Equal(t, 22_002_000.0, tr.Values[0])
	assert.Equal(t, "Country02", tr.Labels[19])
	assert.NotContains(t, tr.Labels, "World", "regions are excluded")
	assert.NotContains(t, tr.Labels, "Country07", "countries without a figure for the year are skipped")
}

func TestInitialPass(t *testing.T) {
	engine := startEngine(t)

	// Selectors without a value keep the placeholder figure.
	fig := figure(t, engine, "gini_year_barchart.figure")
	assert.Equal(t, dashboard.EmptyFigure(), fig)

	hist := figure(t, engine, "indicator_year_histogram.figure")
	assert.Equal(t, dashboard.Gini+" Histogram", hist.Title)
	require.Len(t, hist.Traces, 1)
	assert.Equal(t, "2015", hist.Traces[0].Facet)
	assert.Len(t, hist.Traces[0].Values, 5)

	v, _ := engine.Get(domain.Cell("table_histogram_output", "children"))
	table, ok := v.AsTable()
	require.True(t, ok)
	assert.Equal(t, []string{"Country Name", "year", dashboard.Gini}, table.Columns)
	assert.Len(t, table.Rows, 6)

	md, _ := engine.Get(domain.Cell("indicator_map_details_md", "children"))
	text, _ := md.AsText()
	assert.Contains(t, text, "## "+dashboard.Gini)
	assert.Contains(t, text, "* **Unit of measure** count")
	assert.Contains(t, text, "Comparisons are limited. Surveys differ.")

	m := figure(t, engine, "indicator_map_chart.figure")
	assert.Equal(t, domain.FigureChoropleth, m.Type)
	assert.Len(t, m.Traces, 3, "one frame per year")

	cluster := figure(t, engine, "clustered_map_chart.figure")
	assert.True(t, strings.HasPrefix(cluster.Title, "Country clusters - 2018. Number of clusters: 4<br>Inertia: "), cluster.Title)
	require.Len(t, cluster.Traces, 1)
	assert.Len(t, cluster.Traces[0].Labels, 6, "countries missing the indicator are imputed, not left out")
	assert.Contains(t, cluster.Traces[0].Labels, "Kenya")
	assert.Contains(t, cluster.Annotations[0].Text, dashboard.Gini)
}

func TestGiniCharts(t *testing.T) {
	engine := startEngine(t)
	ctx := context.Background()

	_, err := engine.Set(ctx, domain.Cell("gini_year_dropdown", "value"), domain.Int(2010))
	require.NoError(t, err)
	fig := figure(t, engine, "gini_year_barchart.figure")
	assert.Equal(t, dashboard.Gini+" 2010", fig.Title)
	assert.Equal(t, []string{"Brazil", "Chile", "Norway", "World", "India", "Peru"}, fig.Traces[0].Labels)
	assert.Equal(t, 200+20*6, fig.Layout.Height)

	_, err = engine.Set(ctx, domain.Cell("gini_country_dropdown", "value"), domain.Strings("Brazil", "Chile"))
	require.NoError(t, err)
	fig = figure(t, engine, "gini_country_barchart.figure")
	assert.Equal(t, 100+250*2, fig.Layout.Height)
	require.Len(t, fig.Traces, 2)
	assert.Equal(t, []string{"2010", "2015", "2018"}, fig.Traces[0].Labels)

	before, _ := engine.Snapshot().Get(domain.Cell("gini_country_barchart", "figure"))
	report, err := engine.Set(ctx, domain.Cell("gini_country_dropdown", "value"), domain.List())
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"gini_country_barchart"}, report.Suppressed)
	after, _ := engine.Snapshot().Get(domain.Cell("gini_country_barchart", "figure"))
	assert.Equal(t, before.Version, after.Version, "an empty selection leaves the chart alone")
}

func TestIncomeShare(t *testing.T) {
	engine := startEngine(t)
	_, err := engine.Set(context.Background(), domain.Cell("income_share_country_dropdown", "value"), domain.Text("Brazil"))
	require.NoError(t, err)

	fig := figure(t, engine, "income_share_country_barchart.figure")
	assert.Equal(t, "Income Share Quintiles - Brazil", fig.Title)
	assert.Equal(t, "stack", fig.Layout.BarMode)
	require.Len(t, fig.Traces, 5)
	assert.Equal(t, "Lowest 20%", fig.Traces[0].Name)
	assert.Equal(t, "Highest 20%", fig.Traces[4].Name)
	assert.Equal(t, []float64{50, 50, 50}, fig.Traces[4].Values)
}

func TestPovertyGapScatter(t *testing.T) {
	engine := startEngine(t)

	fig := figure(t, engine, "perc_pov_scatter_chart.figure")
	assert.Equal(t, "Poverty gap at $1.90 a day (2011 PPP) (%)<b>: 2018</b>", fig.Title)
	assert.Equal(t, []string{"Brazil", "Chile", "Norway", "India", "Kenya"}, fig.Traces[0].Labels)
	assert.Equal(t, 250+20*5, fig.Layout.Height)
	assert.Equal(t, "%", fig.Layout.TickSuffix)

	// No observations for the year: the previous chart stays.
	report, err := engine.Set(context.Background(), domain.Cell("perc_pov_year_slider", "value"), domain.Int(1990))
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"poverty_gap_scatter"}, report.Suppressed)

	report, err = engine.Set(context.Background(), domain.Cell("perc_pov_indicator_slider", "value"), domain.Int(9))
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"poverty_gap_scatter"}, report.Failed)
	st, _ := engine.Snapshot().Get(domain.Cell("perc_pov_scatter_chart", "figure"))
	assert.Equal(t, domain.StatusError, st.Status)
}

func TestClusteredMap_NoData(t *testing.T) {
	engine := startEngine(t)
	ctx := context.Background()

	_, err := engine.Set(ctx, domain.Cell("year_cluster_slider", "value"), domain.Int(1990))
	require.NoError(t, err)
	report, err := engine.Set(ctx, domain.Cell("clustering_submit_button", "n_clicks"), domain.Int(1))
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"clustered_map"}, report.Deferred)
	wait(t, engine)

	v, _ := engine.Get(domain.Cell("clustered_map_chart", "figure"))
	assert.Equal(t, domain.KindNoData, v.Kind())
	assert.Equal(t, dashboard.NoClusterData, v.Reason())
}

func TestCountryReport(t *testing.T) {
	engine := startEngine(t)
	_, err := engine.Set(context.Background(), domain.Cell("country", "value"), domain.Text("Country03"))
	require.NoError(t, err)

	v, _ := engine.Get(domain.Cell("report", "children"))
	text, _ := v.AsText()
	assert.Equal(t, "### Country03\n\nThe population of Country03 in 2010 was 3,002,000.", text)
}

func TestRegister(t *testing.T) {
	reg := registry.NewRegistry()
	dashboard.New(loadData(t)).Register(reg)
	assert.Contains(t, reg.Names(), "clustered_map")
	assert.Contains(t, reg.Names(), "population_chart")
	assert.Len(t, reg.Names(), 9)
}

func TestMultilineIndicator(t *testing.T) {
	assert.Equal(t, "GINI index (World<br>Bank estimate)", dashboard.MultilineIndicator(dashboard.Gini))
	assert.Equal(t, "", dashboard.MultilineIndicator(""))
}

func TestNewData_MissingColumns(t *testing.T) {
	data := loadData(t)
	_, err := dashboard.NewData(data.Stats, data.Stats, data.Series)
	assert.ErrorContains(t, err, "missing column")
}

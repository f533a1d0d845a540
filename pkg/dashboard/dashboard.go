// Package dashboard is the World Bank poverty and equity dashboard expressed
// as a mosaic definition: input cells for every selector, handlers for every
// chart, and a read-only dataset injected at construction.
package dashboard

import (
	"time"

	"github.com/aretw0/mosaic/pkg/analytics"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/dsl"
	"github.com/aretw0/mosaic/pkg/registry"
)

// Name is the definition name of the poverty dashboard.
const Name = "poverty"

// ClusterTimeout bounds a single clustering run.
const ClusterTimeout = 30 * time.Second

// Dashboard binds the dataset to the handler implementations.
type Dashboard struct {
	data    *Data
	cluster analytics.Options
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithClusterOptions tunes the k-means run behind the clustered map.
func WithClusterOptions(opts analytics.Options) Option {
	return func(db *Dashboard) {
		db.cluster = opts
	}
}

// New creates the dashboard over data.
func New(data *Data, opts ...Option) *Dashboard {
	db := &Dashboard{data: data}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Data returns the dataset the handlers read from.
func (db *Dashboard) Data() *Data { return db.data }

// Funcs maps the handler function names used by definition files to their
// implementations.
func (db *Dashboard) Funcs() map[string]domain.HandlerFunc {
	return map[string]domain.HandlerFunc{
		"population_chart":      db.PopulationChart,
		"country_report":        db.CountryReport,
		"gini_year_barchart":    db.GiniYearBarchart,
		"gini_country_barchart": db.GiniCountryBarchart,
		"income_share_barchart": db.IncomeShareBarchart,
		"poverty_gap_scatter":   db.PovertyGapScatter,
		"histogram":             db.Histogram,
		"indicator_map":         db.IndicatorMap,
		"clustered_map":         db.ClusteredMap,
	}
}

// Register adds every handler function to reg under its definition-file name.
func (db *Dashboard) Register(reg *registry.Registry) {
	for name, fn := range db.Funcs() {
		reg.Register(name, fn)
	}
}

// Definition returns the complete dashboard graph with its initial values.
func (db *Dashboard) Definition() (domain.Definition, error) {
	empty := domain.Fig(EmptyFigure())

	b := dsl.New(Name).
		Cell("year_dropdown.value", domain.Text("2010")).
		Cell("country.value", domain.Unset()).
		Cell("gini_year_dropdown.value", domain.Unset()).
		Cell("gini_country_dropdown.value", domain.Unset()).
		Cell("income_share_country_dropdown.value", domain.Unset()).
		Cell("perc_pov_year_slider.value", domain.Int(2018)).
		Cell("perc_pov_indicator_slider.value", domain.Int(0)).
		Cell("hist_multi_year_selector.value", domain.List(domain.Int(2015))).
		Cell("hist_indicator_dropdown.value", domain.Text(Gini)).
		Cell("hist_bins_slider.value", domain.Unset()).
		Cell("indicator_dropdown.value", domain.Text(Gini)).
		Cell("clustering_submit_button.n_clicks", domain.Unset()).
		Cell("year_cluster_slider.value", domain.Int(2018)).
		Cell("ncluster_cluster_slider.value", domain.Int(4)).
		Cell("cluster_indicator_dropdown.value", domain.Strings(Gini)).
		Cell("gini_year_barchart.figure", empty).
		Cell("gini_country_barchart.figure", empty).
		Cell("income_share_country_barchart.figure", empty).
		Cell("indicator_year_histogram.figure", empty)

	b.Handler("population_chart").
		Inputs("year_dropdown.value").
		Outputs("population_chart.figure").
		Do(db.PopulationChart).
		Handler("country_report").
		Inputs("country.value").
		Outputs("report.children").
		Do(db.CountryReport).
		Handler("gini_year_barchart").
		Inputs("gini_year_dropdown.value").
		Outputs("gini_year_barchart.figure").
		Do(db.GiniYearBarchart).
		Handler("gini_country_barchart").
		Inputs("gini_country_dropdown.value").
		Outputs("gini_country_barchart.figure").
		Do(db.GiniCountryBarchart).
		Handler("income_share_barchart").
		Inputs("income_share_country_dropdown.value").
		Outputs("income_share_country_barchart.figure").
		Do(db.IncomeShareBarchart).
		Handler("poverty_gap_scatter").
		Inputs("perc_pov_year_slider.value", "perc_pov_indicator_slider.value").
		Outputs("perc_pov_scatter_chart.figure").
		Do(db.PovertyGapScatter).
		Handler("histogram").
		Inputs("hist_multi_year_selector.value", "hist_indicator_dropdown.value", "hist_bins_slider.value").
		Outputs("indicator_year_histogram.figure", "table_histogram_output.children").
		Do(db.Histogram).
		Handler("indicator_map").
		Inputs("indicator_dropdown.value").
		Outputs("indicator_map_chart.figure", "indicator_map_details_md.children").
		Do(db.IndicatorMap).
		Handler("clustered_map").
		Inputs("clustering_submit_button.n_clicks").
		State("year_cluster_slider.value", "ncluster_cluster_slider.value", "cluster_indicator_dropdown.value").
		Outputs("clustered_map_chart.figure").
		Do(db.ClusteredMap).
		Async().
		Timeout(ClusterTimeout)

	return b.Build()
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/mosaic/pkg/analytics"
	"github.com/aretw0/mosaic/pkg/dataset"
	"github.com/aretw0/mosaic/pkg/domain"
)

// TopCountries is the number of bars of the population chart.
const TopCountries = 20

// errUnknownIndicator is returned when a selector names a column the dataset lacks.
var errUnknownIndicator = errors.New("unknown indicator")

// PopulationChart plots the most populous countries for the selected year.
func (db *Dashboard) PopulationChart(_ context.Context, args domain.Args) (domain.Result, error) {
	year, ok := args.Input(0).AsInt()
	if !ok {
		return domain.Suppress(), nil
	}
	col := strconv.Itoa(year)
	if !db.data.population.Has(col) {
		return domain.Update(domain.NoData(fmt.Sprintf("no population figures for %d", year))), nil
	}

	sorted, err := db.data.population.DropMissing(col).SortBy(col, false)
	if err != nil {
		return domain.Result{}, err
	}
	top := sorted.Head(TopCountries)

	trace := domain.Trace{}
	for _, r := range top.Rows() {
		v, _ := r.Float(col)
		trace.Labels = append(trace.Labels, r.String(ColCountry))
		trace.Values = append(trace.Values, v)
	}
	return domain.Update(domain.Fig(domain.Figure{
		Type:   domain.FigureBar,
		Title:  fmt.Sprintf("Top twenty countries by population - %s", col),
		Traces: []domain.Trace{trace},
	})), nil
}

// CountryReport describes a country's population in 2010.
func (db *Dashboard) CountryReport(_ context.Context, args domain.Args) (domain.Result, error) {
	country, ok := args.Input(0).AsText()
	if !ok || country == "" {
		return domain.Update(domain.Markdown("")), nil
	}
	rows := db.data.population.Filter(func(r dataset.Row) bool { return r.String(ColCountry) == country })
	if rows.Len() == 0 {
		return domain.Update(domain.NoData("no population figures for " + country)), nil
	}
	population, ok := rows.Float(0, "2010")
	if !ok {
		return domain.Update(domain.NoData("no population figures for " + country)), nil
	}
	return domain.Update(domain.Markdown(printer.Sprintf(
		"### %s\n\nThe population of %s in 2010 was %.0f.", country, country, population,
	))), nil
}

// GiniYearBarchart ranks countries by Gini index for one year.
func (db *Dashboard) GiniYearBarchart(_ context.Context, args domain.Args) (domain.Result, error) {
	year, ok := args.Input(0).AsInt()
	if !ok || year == 0 || db.data.gini == nil {
		return domain.Suppress(), nil
	}
	df, err := inYear(db.data.gini, year).SortBy(Gini, true)
	if err != nil {
		return domain.Result{}, err
	}

	trace := domain.Trace{Orientation: "h"}
	for _, r := range df.Rows() {
		v, _ := r.Float(Gini)
		trace.Labels = append(trace.Labels, r.String(ColCountry))
		trace.Values = append(trace.Values, v)
	}
	return domain.Update(domain.Fig(domain.Figure{
		Type:   domain.FigureBar,
		Title:  fmt.Sprintf("%s %d", Gini, year),
		Traces: []domain.Trace{trace},
		Layout: domain.Layout{
			Height:     200 + 20*df.Len(),
			Width:      650,
			PaperColor: Background,
			XAxisTitle: Gini,
			YAxisTitle: ColCountry,
		},
	})), nil
}

// GiniCountryBarchart plots the Gini history of the selected countries, one facet each.
func (db *Dashboard) GiniCountryBarchart(_ context.Context, args domain.Args) (domain.Result, error) {
	countries, ok := args.Input(0).AsStrings()
	if !ok || len(countries) == 0 || db.data.gini == nil {
		return domain.Suppress(), nil
	}

	traces := make([]domain.Trace, 0, len(countries))
	for _, country := range countries {
		t := domain.Trace{Name: country, Facet: country}
		rows := db.data.gini.Filter(func(r dataset.Row) bool { return r.String(ColCountry) == country })
		for _, r := range rows.Rows() {
			v, _ := r.Float(Gini)
			t.Labels = append(t.Labels, r.String(ColYear))
			t.Values = append(t.Values, v)
		}
		traces = append(traces, t)
	}
	return domain.Update(domain.Fig(domain.Figure{
		Type:   domain.FigureBar,
		Title:  Gini + "<br><b>" + strings.Join(countries, ", ") + "</b>",
		Traces: traces,
		Layout: domain.Layout{
			Height:     100 + 250*len(countries),
			PaperColor: Background,
			XAxisTitle: ColYear,
			YAxisTitle: "Gini Index",
		},
	})), nil
}

// IncomeShareBarchart stacks the five income quintiles of a country per year.
func (db *Dashboard) IncomeShareBarchart(_ context.Context, args domain.Args) (domain.Result, error) {
	country, ok := args.Input(0).AsText()
	if !ok || country == "" {
		return domain.Suppress(), nil
	}
	if db.data.incomeShare == nil {
		return domain.Update(domain.NoData("dataset has no income share columns")), nil
	}
	rows := db.data.incomeShare.Filter(func(r dataset.Row) bool { return r.String(ColCountry) == country })

	traces := make([]domain.Trace, len(quintiles))
	for i, q := range quintiles {
		traces[i] = domain.Trace{Name: q.label, Orientation: "h"}
		for _, r := range rows.Rows() {
			v, _ := r.Float(q.column)
			traces[i].Labels = append(traces[i].Labels, r.String(ColYear))
			traces[i].Values = append(traces[i].Values, v)
		}
	}
	return domain.Update(domain.Fig(domain.Figure{
		Type:   domain.FigureBar,
		Title:  "Income Share Quintiles - " + country,
		Traces: traces,
		Layout: domain.Layout{
			Height:     600,
			BarMode:    "stack",
			PaperColor: Background,
			PlotColor:  Background,
			XAxisTitle: "Percent of Total Income",
			YAxisTitle: "Year",
			Extra:      map[string]string{"legend.orientation": "h", "legend.x": "0.2", "legend.y": "-0.15"},
		},
	})), nil
}

// PovertyGapScatter plots one poverty-gap indicator for a year, coloured by population.
// Inputs are the year and the index of the indicator among the poverty-gap columns.
func (db *Dashboard) PovertyGapScatter(_ context.Context, args domain.Args) (domain.Result, error) {
	year, ok := args.Input(0).AsInt()
	if !ok {
		return domain.Suppress(), nil
	}
	idx, ok := args.Input(1).AsInt()
	if !ok {
		return domain.Suppress(), nil
	}
	if idx < 0 || idx >= len(db.data.povertyGap) {
		return domain.Result{}, fmt.Errorf("poverty gap indicator %d out of range [0, %d)", idx, len(db.data.povertyGap))
	}
	indicator := db.data.povertyGap[idx]

	df, err := inYear(db.data.percPov, year).DropMissing(indicator).SortBy(indicator, true)
	if err != nil {
		return domain.Result{}, err
	}
	if df.Len() == 0 {
		return domain.Suppress(), nil
	}

	trace := domain.Trace{}
	for _, r := range df.Rows() {
		v, _ := r.Float(indicator)
		pop, _ := r.Float(Population)
		trace.Labels = append(trace.Labels, r.String(ColCountry))
		trace.Values = append(trace.Values, v)
		trace.ColorValues = append(trace.ColorValues, pop)
		trace.Sizes = append(trace.Sizes, 30)
	}
	return domain.Update(domain.Fig(domain.Figure{
		Type:   domain.FigureScatter,
		Title:  fmt.Sprintf("%s<b>: %d</b>", indicator, year),
		Traces: []domain.Trace{trace},
		Layout: domain.Layout{
			Height:     250 + 20*df.Len(),
			PaperColor: Background,
			TickSuffix: "%",
			ColorScale: "cividis",
			XAxisTitle: indicator,
			YAxisTitle: ColCountry,
		},
	})), nil
}

// Histogram shows the distribution of an indicator for the selected years,
// faceted per year, and the matching table.
func (db *Dashboard) Histogram(_ context.Context, args domain.Args) (domain.Result, error) {
	years, ok := args.Input(0).AsInts()
	if !ok || len(years) == 0 {
		return domain.Suppress(), nil
	}
	indicator, ok := args.Input(1).AsText()
	if !ok || indicator == "" {
		return domain.Suppress(), nil
	}
	if !db.data.Poverty.Has(indicator) {
		return domain.Result{}, fmt.Errorf("%w: %s", errUnknownIndicator, indicator)
	}
	bins, _ := args.Input(2).AsInt()

	selected := make(map[int]bool, len(years))
	for _, y := range years {
		selected[y] = true
	}
	df := db.data.countries.Filter(func(r dataset.Row) bool {
		y, ok := r.Float(ColYear)
		return ok && selected[int(y)]
	})

	traces := make([]domain.Trace, 0, len(years))
	byYear := make(map[int]int, len(years))
	table := domain.Table{
		Columns: []string{ColCountry, ColYear, indicator},
		Options: domain.TableOptions{Sortable: true, Filterable: true, ExportFormat: "csv", Height: "400px"},
	}
	for _, r := range df.Rows() {
		yf, _ := r.Float(ColYear)
		y := int(yf)
		rec := domain.Record{ColCountry: domain.Text(r.String(ColCountry)), ColYear: domain.Int(y)}

		i, seen := byYear[y]
		if !seen {
			i = len(traces)
			byYear[y] = i
			label := strconv.Itoa(y)
			traces = append(traces, domain.Trace{Name: label, Facet: label, Bins: bins})
		}
		if v, ok := r.Float(indicator); ok {
			traces[i].Values = append(traces[i].Values, v)
			rec[indicator] = domain.Number(v)
		} else {
			rec[indicator] = domain.Unset()
		}
		table.Rows = append(table.Rows, rec)
	}

	fig := domain.Figure{
		Type:        domain.FigureHistogram,
		Title:       indicator + " Histogram",
		Traces:      traces,
		Layout:      domain.Layout{Height: 700, PaperColor: Background, Extra: map[string]string{"facet_col_wrap": "4"}},
		Annotations: []domain.Annotation{{Text: indicator, X: 0.5, Y: -0.12}},
	}
	return domain.Update(domain.Fig(fig), domain.Tab(table)), nil
}

// IndicatorMap draws a choropleth of an indicator with one frame per year,
// plus the indicator's metadata as markdown.
func (db *Dashboard) IndicatorMap(_ context.Context, args domain.Args) (domain.Result, error) {
	indicator, ok := args.Input(0).AsText()
	if !ok || indicator == "" {
		return domain.Suppress(), nil
	}
	if !db.data.Poverty.Has(indicator) {
		return domain.Result{}, fmt.Errorf("%w: %s", errUnknownIndicator, indicator)
	}

	var traces []domain.Trace
	byYear := make(map[string]int)
	for _, r := range db.data.countries.Rows() {
		v, ok := r.Float(indicator)
		if !ok {
			continue
		}
		y := r.String(ColYear)
		i, seen := byYear[y]
		if !seen {
			i = len(traces)
			byYear[y] = i
			traces = append(traces, domain.Trace{Name: y})
		}
		traces[i].Labels = append(traces[i].Labels, r.String(ColCountryCode))
		traces[i].Values = append(traces[i].Values, v)
	}

	extra := geoLayout("-138,167")
	extra["coloraxis.colorbar.title"] = MultilineIndicator(indicator)
	extra["animation_frame"] = ColYear
	fig := domain.Figure{
		Type:   domain.FigureChoropleth,
		Title:  indicator,
		Traces: traces,
		Layout: domain.Layout{Height: 650, PaperColor: Background, ColorScale: "cividis", Extra: extra},
	}
	return domain.Update(domain.Fig(fig), domain.Markdown(db.indicatorDetails(indicator))), nil
}

func (db *Dashboard) indicatorDetails(indicator string) string {
	series := db.data.Series.Filter(func(r dataset.Row) bool { return r.String(ColIndicator) == indicator })
	if series.Len() == 0 {
		return NoIndicatorDetails
	}
	r := series.Row(0)
	or := func(col, fallback string) string {
		if v := strings.TrimSpace(r.String(col)); v != "" {
			return v
		}
		return fallback
	}
	limitations := strings.ReplaceAll(or("Limitations and exceptions", "N/A"), "\n\n", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.String(ColIndicator))
	fmt.Fprintf(&b, "%s\n\n", r.String("Long definition"))
	fmt.Fprintf(&b, "* **Unit of measure** %s\n", or("Unit of measure", "count"))
	fmt.Fprintf(&b, "* **Periodicity** %s\n", or("Periodicity", "N/A"))
	fmt.Fprintf(&b, "* **Source** %s\n\n", r.String("Source"))
	fmt.Fprintf(&b, "### Limitations and exceptions:\n\n%s\n", limitations)
	return b.String()
}

// ClusteredMap groups countries by the selected indicators for one year.
// The submit button triggers it; year, cluster count and indicators are state.
func (db *Dashboard) ClusteredMap(ctx context.Context, args domain.Args) (domain.Result, error) {
	indicators, ok := args.State(2).AsStrings()
	if !ok || len(indicators) == 0 {
		return domain.Suppress(), nil
	}
	year, ok := args.State(0).AsInt()
	if !ok {
		return domain.Suppress(), nil
	}
	k, ok := args.State(1).AsInt()
	if !ok {
		return domain.Suppress(), nil
	}
	for _, ind := range indicators {
		if !db.data.Poverty.Has(ind) {
			return domain.Result{}, fmt.Errorf("%w: %s", errUnknownIndicator, ind)
		}
	}

	df := inYear(db.data.countries, year)
	if df.Len() == 0 || anyFullyMissing(df, indicators) {
		return domain.Update(domain.NoData(NoClusterData)), nil
	}

	rows := make([]analytics.Row, df.Len())
	for i, r := range df.Rows() {
		row := make(analytics.Row, len(indicators))
		for _, ind := range indicators {
			if v, ok := r.Float(ind); ok {
				row[ind] = v
			}
		}
		rows[i] = row
	}

	res, err := analytics.ClusterContext(ctx, rows, indicators, k, db.cluster)
	if err != nil {
		var insufficient *domain.InsufficientDataError
		if errors.As(err, &insufficient) {
			return domain.Update(domain.NoData(insufficient.Error())), nil
		}
		return domain.Result{}, err
	}

	trace := domain.Trace{Name: "Cluster"}
	for i, rowIdx := range res.Rows {
		label := res.Labels[i]
		trace.Labels = append(trace.Labels, df.String(rowIdx, ColCountry))
		trace.Values = append(trace.Values, float64(label))
		trace.Colors = append(trace.Colors, palette[label%len(palette)])
	}

	extra := geoLayout("-137,168")
	extra["locationmode"] = "country names"
	return domain.Update(domain.Fig(domain.Figure{
		Type: domain.FigureChoropleth,
		Title: fmt.Sprintf("Country clusters - %d. Number of clusters: %d<br>Inertia: %s",
			year, k, printer.Sprintf("%.2f", res.Inertia)),
		Traces:      []domain.Trace{trace},
		Layout:      domain.Layout{Height: 650, PaperColor: Background, Extra: extra},
		Annotations: []domain.Annotation{{Text: "Indicators:<br>" + strings.Join(indicators, "<br>"), X: -0.1, Y: -0.15}},
	})), nil
}

func anyFullyMissing(df *dataset.Frame, cols []string) bool {
	for _, c := range cols {
		vals, err := df.Floats(c)
		if err != nil {
			return true
		}
		missing := true
		for _, v := range vals {
			if !math.IsNaN(v) {
				missing = false
				break
			}
		}
		if missing {
			return true
		}
	}
	return false
}

package dashboard

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/mosaic/pkg/dataset"
)

// Column and indicator names of the World Bank poverty dataset.
const (
	ColCountry     = "Country Name"
	ColCountryCode = "Country Code"
	ColIndicator   = "Indicator Name"
	ColYear        = "year"
	ColIsCountry   = "is_country"

	Gini       = "GINI index (World Bank estimate)"
	Population = "Population, total"
)

// Files expected by LoadData.
const (
	PovStatsFile = "PovStatsData.csv"
	PovertyFile  = "poverty.csv"
	SeriesFile   = "PovStatsSeries.csv"
)

// Regions are aggregate rows of the stats file that are not countries.
var Regions = []string{
	"East Asia & Pacific", "Europe & Central Asia",
	"Fragile and conflict affected situations", "High income",
	"IDA countries classified as fragile situations", "IDA total",
	"Latin America & Caribbean", "Low & middle income", "Low income",
	"Lower middle income", "Middle East & North Africa",
	"Middle income", "South Asia", "Sub-Saharan Africa",
	"Upper middle income", "World",
}

var quintiles = []struct{ column, label string }{
	{"Income share held by lowest 20%", "Lowest 20%"},
	{"Income share held by second 20%", "Second 20%"},
	{"Income share held by third 20%", "Third 20%"},
	{"Income share held by fourth 20%", "Fourth 20%"},
	{"Income share held by highest 20%", "Highest 20%"},
}

// Data is the read-only dataset shared by every handler.
type Data struct {
	// Poverty is the tidy table: one row per country and year, one column per indicator.
	Poverty *dataset.Frame
	// Stats is the wide table: one row per country and indicator, one column per year.
	Stats *dataset.Frame
	// Series holds the indicator metadata.
	Series *dataset.Frame

	population  *dataset.Frame
	countries   *dataset.Frame
	gini        *dataset.Frame
	incomeShare *dataset.Frame
	povertyGap  []string
	percPov     *dataset.Frame
}

// LoadData reads the three dataset files from dir.
func LoadData(dir string) (*Data, error) {
	stats, err := dataset.LoadCSV(filepath.Join(dir, PovStatsFile))
	if err != nil {
		return nil, err
	}
	poverty, err := dataset.LoadCSV(filepath.Join(dir, PovertyFile))
	if err != nil {
		return nil, err
	}
	series, err := dataset.LoadCSV(filepath.Join(dir, SeriesFile))
	if err != nil {
		return nil, err
	}
	return NewData(poverty, stats, series)
}

// NewData validates the frames and precomputes the derived views.
func NewData(poverty, stats, series *dataset.Frame) (*Data, error) {
	for _, req := range []struct {
		name  string
		frame *dataset.Frame
		cols  []string
	}{
		{PovertyFile, poverty, []string{ColCountry, ColCountryCode, ColYear, ColIsCountry}},
		{PovStatsFile, stats, []string{ColCountry, ColIndicator}},
		{SeriesFile, series, []string{ColIndicator}},
	} {
		if req.frame == nil {
			return nil, fmt.Errorf("%s: frame is required", req.name)
		}
		for _, c := range req.cols {
			if !req.frame.Has(c) {
				return nil, fmt.Errorf("%s: missing column %q", req.name, c)
			}
		}
	}

	d := &Data{Poverty: poverty, Stats: stats, Series: series}

	d.population = stats.Filter(func(r dataset.Row) bool {
		return r.String(ColIndicator) == Population && !slices.Contains(Regions, r.String(ColCountry))
	})
	d.countries = poverty.Filter(func(r dataset.Row) bool { return r.Bool(ColIsCountry) })
	if poverty.Has(Gini) {
		d.gini = poverty.DropMissing(Gini)
	}

	shareCols := make([]string, 0, len(quintiles))
	for _, q := range quintiles {
		if poverty.Has(q.column) {
			shareCols = append(shareCols, q.column)
		}
	}
	if len(shareCols) == len(quintiles) {
		d.incomeShare = poverty.DropMissing(shareCols...)
	}

	for _, c := range poverty.Columns() {
		if strings.Contains(c, "Poverty gap") {
			d.povertyGap = append(d.povertyGap, c)
		}
	}
	d.percPov = d.countries.DropMissing(d.povertyGap...)

	return d, nil
}

// Indicators lists the numeric indicator columns of the poverty table.
func (d *Data) Indicators() []string {
	var out []string
	for _, c := range d.Poverty.Columns() {
		switch c {
		case ColCountry, ColCountryCode, ColYear, ColIsCountry:
			continue
		}
		out = append(out, c)
	}
	return out
}

// PovertyGapColumns lists the indicators driven by the poverty-gap slider.
func (d *Data) PovertyGapColumns() []string { return slices.Clone(d.povertyGap) }

// GiniYears lists the years with at least one Gini observation, ascending.
func (d *Data) GiniYears() []int {
	if d.gini == nil {
		return nil
	}
	var years []int
	for _, y := range d.gini.Unique(ColYear) {
		if n, err := strconv.Atoi(y); err == nil {
			years = append(years, n)
		}
	}
	slices.Sort(years)
	return slices.Compact(years)
}

func inYear(f *dataset.Frame, year int) *dataset.Frame {
	return f.Filter(func(r dataset.Row) bool {
		y, ok := r.Float(ColYear)
		return ok && int(y) == year
	})
}

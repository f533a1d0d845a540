package dashboard

import (
	"strings"

	"github.com/aretw0/mosaic/pkg/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Background is the paper colour shared by every chart.
const Background = "#E5ECF6"

// NoClusterData is the placeholder shown when clustering has nothing to work on.
const NoClusterData = "No available data for the selected combination of year/indicators."

// NoIndicatorDetails is shown when an indicator has no series metadata.
const NoIndicatorDetails = "No details available on this indicator"

// palette is the qualitative colour sequence of the cluster map.
var palette = []string{
	"#4C78A8", "#F58518", "#E45756", "#72B7B2", "#54A24B",
	"#EECA3B", "#B279A2", "#FF9DA6", "#9D755D", "#BAB0AC",
}

var printer = message.NewPrinter(language.English)

// EmptyFigure is the blank chart shown before a handler has produced anything.
func EmptyFigure() domain.Figure {
	return domain.Figure{
		Type:   domain.FigureEmpty,
		Layout: domain.Layout{PaperColor: Background, PlotColor: Background},
	}
}

// MultilineIndicator wraps a long indicator name every three words with <br>.
func MultilineIndicator(indicator string) string {
	words := strings.Fields(indicator)
	var lines []string
	for i := 0; i < len(words); i += 3 {
		end := min(i+3, len(words))
		lines = append(lines, strings.Join(words[i:end], " "))
	}
	return strings.Join(lines, "<br>")
}

// geoLayout is the map framing shared by the choropleths.
func geoLayout(lon string) map[string]string {
	return map[string]string{
		"geo.projection":     "natural earth",
		"geo.showframe":      "false",
		"geo.showcountries":  "true",
		"geo.lataxis.range":  "-53,76",
		"geo.lonaxis.range":  lon,
		"geo.landcolor":      "white",
		"geo.bgcolor":        Background,
		"geo.countrycolor":   "gray",
		"geo.coastlinecolor": "gray",
	}
}

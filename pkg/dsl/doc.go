/*
Package dsl provides a fluent builder for constructing dashboard graphs in Go.

It is the programmatic alternative to YAML or JSON definition files, useful
for tests and for wiring handler closures that capture data.

Example usage:

	def, err := dsl.New("population").
		Cell("year_dropdown.value", domain.Int(2010)).
		Handler("population").
		Inputs("year_dropdown.value").
		Outputs("population_chart.figure").
		Do(populationChart).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	eng, err := mosaic.New(def)
*/
package dsl

/*
Package mosaic is a reactive property graph engine for data dashboards.

UI state is a set of addressable cells, each a (component, property) pair such
as "year_dropdown.value" or "population_chart.figure". Handlers are pure
functions binding input cells (which trigger), state cells (which are read but
never trigger) and output cells (which only that handler writes). When an
external event sets input cells, the engine recomputes exactly the handlers
downstream of the change, once each, in dependency order.

# Concept

A pass runs Collect, Plan, Execute and Commit. Handlers may suppress their
update, in which case nothing downstream runs. A failing handler only marks its
own outputs as errored; the rest of the dashboard keeps working. Long-running
handlers can be declared Async: their outputs turn pending, and a result is
committed only if no newer input arrived in the meantime.

After every commit the engine publishes a snapshot of all cells and a diff
against the previous snapshot to subscribers and renderers.

# Usage

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

	eng, err := mosaic.New(def, mosaic.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	if _, err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	report, err := eng.Set(ctx, domain.Cell("year_dropdown", "value"), domain.Int(2015))

# Architecture

The propagation core (internal/runtime) is decoupled from its surroundings by
ports (pkg/ports): snapshot stores (memory, Redis, bbolt), a distributed
locker, and renderers. Boundary adapters expose a session manager over HTTP
with server-sent events and over the Model Context Protocol.
*/
package mosaic

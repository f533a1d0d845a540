package dsl

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
)

func echo(_ context.Context, args domain.Args) (domain.Result, error) {
	return domain.Update(args.Input(0)), nil
}

func TestBuilder_SimpleGraph(t *testing.T) {
	def, err := New("demo").
		Cell("year_dropdown.value", domain.Int(2010)).
		Handler("population").
		Inputs("year_dropdown.value").
		Outputs("population_chart.figure").
		Do(echo).
		Handler("cluster").
		Inputs("clustering_submit_button.n_clicks").
		State("year_cluster_slider.value", "ncluster_cluster_slider.value").
		Outputs("clustered_map_chart.figure").
		Do(echo).
		Async().
		Timeout(time.Second).
		PreventInitialCall().
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if def.Name != "demo" {
		t.Errorf("Expected name 'demo', got %q", def.Name)
	}
	if len(def.Handlers) != 2 {
		t.Fatalf("Expected 2 handlers, got %d", len(def.Handlers))
	}
	if def.Handlers[0].ID != "population" {
		t.Errorf("Expected declaration order, got %s first", def.Handlers[0].ID)
	}
	if v := def.Cells[domain.Cell("year_dropdown", "value")]; v.String() != "2010" {
		t.Errorf("Expected initial year 2010, got %s", v)
	}

	cluster := def.Handlers[1]
	if !cluster.Async || !cluster.PreventInitialCall || cluster.Timeout != time.Second {
		t.Errorf("Flags not applied: %+v", cluster)
	}
	if len(cluster.State) != 2 || cluster.State[1] != domain.Cell("ncluster_cluster_slider", "value") {
		t.Errorf("Unexpected state cells: %v", cluster.State)
	}
}

func TestBuilder_ResumeHandler(t *testing.T) {
	b := New("demo")
	b.Handler("h").Inputs("a.value")
	b.Handler("h").Outputs("b.value").Do(echo)

	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if len(def.Handlers) != 1 || len(def.Handlers[0].Inputs) != 1 {
		t.Errorf("Expected a single merged handler, got %+v", def.Handlers)
	}
}

func TestBuilder_Errors(t *testing.T) {
	if _, err := New("bad").Handler("h").Inputs("nodot").Outputs("b.value").Do(echo).Build(); err == nil {
		t.Error("Expected error for malformed cell id")
	}
	if _, err := New("bad").Handler("h").Inputs("a.value").Do(echo).Build(); err == nil {
		t.Error("Expected error for handler without outputs")
	}
	if _, err := New("bad").Handler("h").Outputs("b.value").Do(echo).Build(); err == nil {
		t.Error("Expected error for handler without inputs")
	}
	if _, err := New("bad").Handler("h").Inputs("a.value").Outputs("b.value").Build(); err == nil {
		t.Error("Expected error for handler without function")
	}
}

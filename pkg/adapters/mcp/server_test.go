package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/pkg/adapters/memory"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/dsl"
	"github.com/aretw0/mosaic/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var doubled = domain.Cell("doubled", "value")

func newServer(t *testing.T) *Server {
	t.Helper()
	def, err := dsl.New("counter").
		Cell("counter.value", domain.Int(1)).
		Handler("double").Inputs("counter.value").Outputs("doubled.value").
		Do(func(_ context.Context, a domain.Args) (domain.Result, error) {
			n, _ := a.Input(0).AsInt()
			return domain.Update(domain.Int(n * 2)), nil
		}).
		Build()
	require.NoError(t, err)

	manager := session.NewManager(def, memory.NewStore())
	t.Cleanup(func() { _ = manager.Close() })
	return NewServer(manager, dto.FromDefinition(def))
}

func TestSetInputsAndSnapshot(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	rich, err := s.handleSetInputs(ctx, mcp.CallToolRequest{}, SetInputsArgs{
		SessionID: "agent",
		Changes:   map[string]any{"counter.value": 4.0},
	})
	require.NoError(t, err)
	assert.Contains(t, rich.Report.Changed, doubled)
	assert.True(t, rich.Snapshot.Value(doubled).Equal(domain.Int(8)))

	snap, err := s.handleGetSnapshot(ctx, mcp.CallToolRequest{}, SnapshotArgs{SessionID: "agent", Cells: "doubled.value"})
	require.NoError(t, err)
	assert.Len(t, snap.Cells, 1)
	assert.True(t, snap.Value(doubled).Equal(domain.Int(8)))
}

func TestSetInputs_Rejected(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.handleSetInputs(ctx, mcp.CallToolRequest{}, SetInputsArgs{SessionID: "agent"})
	assert.ErrorContains(t, err, "no changes")

	_, err = s.handleSetInputs(ctx, mcp.CallToolRequest{}, SetInputsArgs{
		SessionID: "agent",
		Changes:   map[string]any{"doubled.value": 1.0},
	})
	assert.ErrorIs(t, err, domain.ErrNotInputCell)

	_, err = s.handleGetSnapshot(ctx, mcp.CallToolRequest{}, SnapshotArgs{SessionID: "unknown"})
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestGraphResource(t *testing.T) {
	s := newServer(t)
	contents, err := s.readGraph(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, GraphURI, text.URI)

	var g dto.Graph
	require.NoError(t, json.Unmarshal([]byte(text.Text), &g))
	assert.Equal(t, []string{"counter.value"}, g.Inputs)
}

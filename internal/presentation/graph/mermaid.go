package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/mosaic/internal/dto"
)

// PassOverlay contains the outcome of a pass to visualize on the graph.
type PassOverlay struct {
	Executed []string
	Failed   []string
	Changed  []string
}

// GenerateMermaid produces a Mermaid flowchart of the handler graph.
// It applies semantic styling:
// - Input cell: [/Parallelogram/]
// - Handler: [[Subroutine]]
// - Derived cell: [Rectangle]
// Inputs and outputs use solid arrows, state cells a dotted "state" arrow.
// It also applies overlay styles (Executed/Failed/Changed) if provided.
func GenerateMermaid(g dto.Graph, overlay *PassOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	inputs := make(map[string]bool, len(g.Inputs))
	for _, c := range g.Inputs {
		inputs[c] = true
	}
	declared := make(map[string]bool)
	declare := func(cell string) {
		if declared[cell] {
			return
		}
		declared[cell] = true
		opener, closer := "[", "]"
		if inputs[cell] {
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", cellID(cell), opener, cell, closer))
	}

	for _, c := range g.Inputs {
		declare(c)
	}
	for _, h := range g.Handlers {
		label := h.ID
		if h.Async {
			label = fmt.Sprintf("%s <br/> ⏱️ async", h.ID)
			if h.Timeout > 0 {
				label = fmt.Sprintf("%s <br/> ⏱️ %s", h.ID, h.Timeout)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s[[\"%s\"]]\n", handlerID(h.ID), label))

		for _, c := range h.Inputs {
			declare(c)
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", cellID(c), handlerID(h.ID)))
		}
		for _, c := range h.State {
			declare(c)
			sb.WriteString(fmt.Sprintf("    %s -. \"state\" .-> %s\n", cellID(c), handlerID(h.ID)))
		}
		for _, c := range h.Outputs {
			declare(c)
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", handlerID(h.ID), cellID(c)))
		}
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef executed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")

		classify := func(class string, ids []string, safe func(string) string) {
			seen := make(map[string]bool)
			for _, id := range ids {
				s := safe(id)
				if id != "" && !seen[s] {
					seen[s] = true
					sb.WriteString(fmt.Sprintf("    class %s %s;\n", s, class))
				}
			}
		}
		classify("executed", overlay.Executed, handlerID)
		classify("failed", overlay.Failed, handlerID)
		classify("changed", overlay.Changed, cellID)
	}

	return sb.String()
}

// Cells and handlers live in different namespaces, so their node IDs are prefixed.
func cellID(id string) string    { return "c_" + sanitizeMermaidID(id) }
func handlerID(id string) string { return "h_" + sanitizeMermaidID(id) }

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

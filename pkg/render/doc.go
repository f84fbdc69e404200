// Package render draws tours as Graphviz diagrams.
//
// [ToDOT] converts an instance and a tour into DOT source. Cities with
// coordinates are pinned at their positions and laid out by neato, so the
// picture matches the map; instances given only as a distance matrix are
// laid out by neato from the edge lengths. [Render] turns DOT into SVG or PNG
// in process:
//
//	dot, err := render.ToDOT(inst, run.Tour, render.Options{EdgeLabels: true})
//	svg, err := render.Render(ctx, dot, render.FormatSVG)
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz], which embeds Graphviz
// as WebAssembly; no system installation is required.
package render

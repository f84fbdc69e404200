package render

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

// Output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatDOT, FormatSVG, FormatPNG}
}

// Options configures tour rendering.
type Options struct {
	// Size is the length in inches of the longer side of the coordinate
	// bounding box. Zero means 8.
	Size float64 `json:"size,omitempty"`

	// EdgeLabels labels every tour edge with its distance.
	EdgeLabels bool `json:"edge_labels,omitempty"`

	// Labels shows 1-indexed city numbers as in the TSPLIB file instead of
	// small unlabeled dots.
	Labels bool `json:"labels,omitempty"`
}

// ToDOT converts a closed tour over inst into Graphviz DOT source.
// The graph label carries the instance name and tour cost.
func ToDOT(inst *tsplib.Instance, tour []int, opts Options) (string, error) {
	if inst == nil || inst.Matrix == nil {
		return "", errors.New(errors.ErrCodeInvalidProblem, "instance has no distance matrix")
	}
	if err := inst.Matrix.ValidateTour(tour); err != nil {
		return "", err
	}
	if opts.Size <= 0 {
		opts.Size = 8
	}

	var buf bytes.Buffer
	buf.WriteString("graph T {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  splines=false;\n")
	fmt.Fprintf(&buf, "  label=%q;\n", fmt.Sprintf("%s  cost %s", inst.Name, fmtFloat(inst.Matrix.TourCost(tour))))
	buf.WriteString("  labelloc=t;\n")
	if opts.Labels {
		buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10, width=0.3, fixedsize=true];\n")
	} else {
		buf.WriteString("  node [shape=point, width=0.08, color=\"#333333\"];\n")
	}
	buf.WriteString("  edge [color=\"#1f77b4\", penwidth=1.5, fontsize=8];\n")
	buf.WriteString("\n")

	pos := positions(inst, opts.Size)
	for _, c := range tour {
		attrs := []string{fmt.Sprintf("label=%q", strconv.Itoa(c+1))}
		if pos != nil {
			attrs = append(attrs, fmt.Sprintf("pos=\"%s,%s!\"", fmtFloat(pos[c].X), fmtFloat(pos[c].Y)))
		}
		if c == tour[0] {
			attrs = append(attrs, "color=\"#d62728\"")
		}
		fmt.Fprintf(&buf, "  %d [%s];\n", c, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for i, from := range tour {
		to := tour[(i+1)%len(tour)]
		d := inst.Matrix.At(from, to)
		var attrs []string
		if opts.EdgeLabels {
			attrs = append(attrs, fmt.Sprintf("label=%q", fmtFloat(d)))
		}
		if pos == nil {
			attrs = append(attrs, "len="+fmtFloat(edgeLength(inst, d)))
		}
		if len(attrs) > 0 {
			fmt.Fprintf(&buf, "  %d -- %d [%s];\n", from, to, strings.Join(attrs, ", "))
		} else {
			fmt.Fprintf(&buf, "  %d -- %d;\n", from, to)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

// positions scales the instance coordinates into a box whose longer side is
// size inches. It returns nil when the instance has no coordinates.
func positions(inst *tsplib.Instance, size float64) []tsplib.Coord {
	if !inst.HasCoords() {
		return nil
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range inst.Coords {
		minX, maxX = min(minX, c.X), max(maxX, c.X)
		minY, maxY = min(minY, c.Y), max(maxY, c.Y)
	}
	span := max(maxX-minX, maxY-minY)
	scale := 1.0
	if span > 0 {
		scale = size / span
	}
	out := make([]tsplib.Coord, len(inst.Coords))
	for i, c := range inst.Coords {
		out[i] = tsplib.Coord{X: (c.X - minX) * scale, Y: (c.Y - minY) * scale}
	}
	return out
}

// edgeLength maps a distance to a neato edge length in inches relative to
// the largest entry of the matrix.
func edgeLength(inst *tsplib.Instance, d float64) float64 {
	largest := slices.Max(inst.Matrix.Data())
	if largest <= 0 {
		return 1
	}
	return max(0.3, 4*d/largest)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render renders DOT source to format. FormatDOT returns the source as-is.
func Render(ctx context.Context, dot, format string) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatPNG:
		gvFormat = graphviz.PNG
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported render format %q (want one of %s)",
			format, strings.Join(Formats(), ", "))
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if format == FormatSVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// RenderSVG renders DOT source to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return Render(ctx, dot, FormatSVG)
}

// RenderPNG renders DOT source to PNG.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return Render(ctx, dot, FormatPNG)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's fixed-point <svg> header with one that
// scales cleanly when embedded in a page. The XML declaration, DOCTYPE and
// generator comments before the root element are dropped, so the result
// starts with <svg and can be inlined into HTML.
func normalizeViewBox(svg []byte) []byte {
	if i := bytes.Index(svg, []byte("<svg")); i > 0 {
		svg = svg[i:]
	}
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}

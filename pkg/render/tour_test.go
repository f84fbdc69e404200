package render

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

const square = `NAME : square4
TYPE : TSP
DIMENSION : 4
EDGE_WEIGHT_TYPE : EUC_2D
NODE_COORD_SECTION
1 0 0
2 10 0
3 10 10
4 0 10
EOF
`

const explicit = `NAME : tri3
TYPE : TSP
DIMENSION : 3
EDGE_WEIGHT_TYPE : EXPLICIT
EDGE_WEIGHT_FORMAT : UPPER_ROW
EDGE_WEIGHT_SECTION
3 4
5
EOF
`

func parse(t *testing.T, src string) *tsplib.Instance {
	t.Helper()
	inst, err := tsplib.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return inst
}

func TestToDOTWithCoords(t *testing.T) {
	inst := parse(t, square)
	dot, err := ToDOT(inst, []int{0, 1, 2, 3}, Options{Size: 4, EdgeLabels: true})
	if err != nil {
		t.Fatalf("ToDOT: %v", err)
	}

	for _, want := range []string{
		"graph T {",
		"layout=neato;",
		`label="square4  cost 40";`,
		`0 [label="1", pos="0,0!", color="#d62728"];`,
		`2 [label="3", pos="4,4!"];`,
		`3 -- 0 [label="10"];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "len=") {
		t.Error("pinned layouts should not set edge lengths")
	}
	if got := strings.Count(dot, " -- "); got != 4 {
		t.Errorf("edge count = %d, want 4", got)
	}
}

func TestToDOTWithoutCoords(t *testing.T) {
	inst := parse(t, explicit)
	dot, err := ToDOT(inst, []int{0, 2, 1}, Options{})
	if err != nil {
		t.Fatalf("ToDOT: %v", err)
	}
	if strings.Contains(dot, "pos=") {
		t.Error("matrix-only instances should not pin positions")
	}
	// Longest edge (1-2, weight 5) gets the longest length.
	if !strings.Contains(dot, "2 -- 1 [len=4];") {
		t.Errorf("expected scaled edge length:\n%s", dot)
	}
	if !strings.Contains(dot, "cost 12") {
		t.Errorf("expected cost 12:\n%s", dot)
	}
}

func TestToDOTInvalidTour(t *testing.T) {
	inst := parse(t, square)
	tests := [][]int{
		{0, 1, 2},
		{0, 1, 2, 2},
		{0, 1, 2, 4},
	}
	for _, tour := range tests {
		if _, err := ToDOT(inst, tour, Options{}); !errors.Is(err, errors.ErrCodeInvalidPermutation) {
			t.Errorf("ToDOT(%v) error = %v, want INVALID_PERMUTATION", tour, err)
		}
	}
	if _, err := ToDOT(&tsplib.Instance{}, []int{0}, Options{}); !errors.Is(err, errors.ErrCodeInvalidProblem) {
		t.Errorf("ToDOT without matrix error = %v", err)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	graphviz := `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN"
 "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">
<!-- Generated by graphviz -->
<svg width="62pt" height="44pt"
 viewBox="0.00 0.00 62.00 44.00" xmlns="http://www.w3.org/2000/svg">
<g id="graph0"></g>
</svg>
`
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 62.00 44.00" width="62" height="44">
<g id="graph0"></g>
</svg>
`
	if got := string(normalizeViewBox([]byte(graphviz))); got != want {
		t.Errorf("normalizeViewBox =\n%s\nwant\n%s", got, want)
	}

	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	want = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if got := string(normalizeViewBox(in)); got != want {
		t.Errorf("normalizeViewBox = %s", got)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Error("SVG without viewBox should be unchanged")
	}

	bare := []byte(`<svg viewBox="0 0 0 0"></svg>`)
	if got := normalizeViewBox(bare); !bytes.Equal(got, bare) {
		t.Errorf("degenerate viewBox should pass through, got %s", got)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	inst := parse(t, square)
	dot, err := ToDOT(inst, []int{0, 3, 2, 1}, Options{Labels: true})
	if err != nil {
		t.Fatal(err)
	}

	raw, err := Render(ctx, dot, FormatDOT)
	if err != nil || string(raw) != dot {
		t.Errorf("Render(dot) should return the source, err %v", err)
	}

	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.HasPrefix(svg, []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0`)) {
		t.Errorf("SVG header not normalized: %.200s", svg)
	}

	png, err := RenderPNG(ctx, dot)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("RenderPNG did not produce a PNG")
	}

	if _, err := Render(ctx, dot, "pdf"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Render(pdf) error = %v, want INVALID_FORMAT", err)
	}
}

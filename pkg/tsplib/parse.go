package tsplib

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/matzehuels/mallows/pkg/errors"
)

// Edge weight types.
const (
	WeightExplicit = "EXPLICIT"
	WeightEuc2D    = "EUC_2D"
	WeightCeil2D   = "CEIL_2D"
	WeightAtt      = "ATT"
	WeightGeo      = "GEO"
)

// Explicit edge weight formats.
const (
	FormatFullMatrix   = "FULL_MATRIX"
	FormatUpperRow     = "UPPER_ROW"
	FormatLowerRow     = "LOWER_ROW"
	FormatUpperDiagRow = "UPPER_DIAG_ROW"
	FormatLowerDiagRow = "LOWER_DIAG_ROW"
	FormatUpperCol     = "UPPER_COL"
	FormatLowerCol     = "LOWER_COL"
	FormatUpperDiagCol = "UPPER_DIAG_COL"
	FormatLowerDiagCol = "LOWER_DIAG_COL"
)

const (
	sectionNodeCoord   = "NODE_COORD_SECTION"
	sectionDisplayData = "DISPLAY_DATA_SECTION"
	sectionEdgeWeight  = "EDGE_WEIGHT_SECTION"
	sectionTour        = "TOUR_SECTION"
	sectionSkip        = "skip"
)

// Coord is a node position.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Instance is a parsed TSPLIB file.
type Instance struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Comment          string `json:"comment,omitempty"`
	Dimension        int    `json:"dimension"`
	EdgeWeightType   string `json:"edge_weight_type,omitempty"`
	EdgeWeightFormat string `json:"edge_weight_format,omitempty"`

	// Coords holds node or display coordinates, nil if the file has neither.
	Coords []Coord `json:"coords,omitempty"`

	// Matrix is nil for TOUR files.
	Matrix *Matrix `json:"-"`

	// OptimalTour is the 0-indexed tour from a TOUR_SECTION, if any.
	OptimalTour []int `json:"optimal_tour,omitempty"`
}

// HasCoords reports whether the instance carries one coordinate per city.
func (inst *Instance) HasCoords() bool {
	return len(inst.Coords) == inst.Dimension && inst.Dimension > 0
}

// ParseFile parses a TSPLIB file. Files ending in .gz are decompressed.
func ParseFile(path string) (*Instance, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "gunzip %s", path)
		}
		defer gz.Close()
		r = gz
	}
	inst, err := Parse(r)
	if err != nil {
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeInvalidProblem
		}
		return nil, errors.Wrap(code, err, "parse %s", path)
	}
	return inst, nil
}

// LoadTour parses a tour file and returns its 0-indexed tour.
func LoadTour(path string) ([]int, error) {
	inst, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if inst.OptimalTour == nil {
		return nil, errors.New(errors.ErrCodeInvalidProblem, "%s has no TOUR_SECTION", path)
	}
	return inst.OptimalTour, nil
}

// Parse reads a TSPLIB instance. Explicit weights are read as a token stream,
// so line breaks inside EDGE_WEIGHT_SECTION are irrelevant.
func Parse(r io.Reader) (*Instance, error) {
	inst := &Instance{}
	var (
		weights []float64
		coords  = map[int]Coord{}
		tour    []int
		tourEnd bool
		section string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "EOF" {
			break
		}

		if isKeyword(line) {
			key, value := splitHeader(line)
			switch {
			case key == sectionNodeCoord || key == sectionDisplayData ||
				key == sectionEdgeWeight || key == sectionTour:
				section = key
			case strings.HasSuffix(key, "_SECTION"):
				section = sectionSkip
			default:
				section = ""
				if err := inst.setHeader(key, value); err != nil {
					return nil, err
				}
			}
			continue
		}

		fields := strings.Fields(line)
		switch section {
		case sectionNodeCoord, sectionDisplayData:
			if len(fields) < 3 {
				return nil, errors.New(errors.ErrCodeInvalidProblem, "line %d: want \"id x y\", got %q", lineNo, line)
			}
			id, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidProblem, err, "line %d: node id", lineNo)
			}
			x, errX := strconv.ParseFloat(fields[1], 64)
			y, errY := strconv.ParseFloat(fields[2], 64)
			if errX != nil || errY != nil {
				return nil, errors.New(errors.ErrCodeInvalidProblem, "line %d: invalid coordinates %q", lineNo, line)
			}
			// Node coordinates win over display data for the same node.
			if _, seen := coords[id]; !seen || section == sectionNodeCoord {
				coords[id] = Coord{X: x, Y: y}
			}
		case sectionEdgeWeight:
			for _, f := range fields {
				w, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeInvalidProblem, err, "line %d: edge weight", lineNo)
				}
				weights = append(weights, w)
			}
		case sectionTour:
			for _, f := range fields {
				if tourEnd {
					break
				}
				v, err := strconv.Atoi(f)
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeInvalidProblem, err, "line %d: tour node", lineNo)
				}
				if v == -1 {
					tourEnd = true
					break
				}
				tour = append(tour, v-1)
			}
		case sectionSkip:
		default:
			return nil, errors.New(errors.ErrCodeInvalidProblem, "line %d: unexpected data outside a section: %q", lineNo, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProblem, err, "read")
	}

	if inst.Dimension <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidProblem, "missing or invalid DIMENSION")
	}
	if err := inst.buildCoords(coords); err != nil {
		return nil, err
	}
	if tour != nil {
		if len(tour) != inst.Dimension {
			return nil, errors.New(errors.ErrCodeInvalidProblem,
				"TOUR_SECTION has %d nodes, want %d", len(tour), inst.Dimension)
		}
		inst.OptimalTour = tour
	}
	if inst.Type == "TOUR" {
		return inst, nil
	}
	if err := inst.buildMatrix(weights); err != nil {
		return nil, err
	}
	return inst, nil
}

func (inst *Instance) setHeader(key, value string) error {
	switch key {
	case "NAME":
		inst.Name = value
	case "TYPE":
		inst.Type = strings.ToUpper(value)
	case "COMMENT":
		if inst.Comment != "" {
			inst.Comment += " "
		}
		inst.Comment += value
	case "DIMENSION":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return errors.New(errors.ErrCodeInvalidProblem, "invalid DIMENSION %q", value)
		}
		inst.Dimension = n
	case "EDGE_WEIGHT_TYPE":
		inst.EdgeWeightType = strings.ToUpper(value)
	case "EDGE_WEIGHT_FORMAT":
		inst.EdgeWeightFormat = strings.ToUpper(value)
	}
	return nil
}

func (inst *Instance) buildCoords(coords map[int]Coord) error {
	if len(coords) == 0 {
		return nil
	}
	inst.Coords = make([]Coord, inst.Dimension)
	for id, c := range coords {
		if id < 1 || id > inst.Dimension {
			return errors.New(errors.ErrCodeInvalidProblem, "node id %d outside 1..%d", id, inst.Dimension)
		}
		inst.Coords[id-1] = c
	}
	if len(coords) != inst.Dimension {
		return errors.New(errors.ErrCodeInvalidProblem,
			"coordinate section has %d nodes, want %d", len(coords), inst.Dimension)
	}
	return nil
}

func (inst *Instance) buildMatrix(weights []float64) error {
	n := inst.Dimension
	var dist func(a, b Coord) float64
	switch inst.EdgeWeightType {
	case WeightExplicit:
		m, err := explicitMatrix(n, inst.EdgeWeightFormat, weights)
		if err != nil {
			return err
		}
		inst.Matrix = m
		return nil
	case WeightEuc2D:
		dist = euclidean
	case WeightCeil2D:
		dist = ceilEuclidean
	case WeightAtt:
		dist = pseudoEuclidean
	case WeightGeo:
		dist = geographical
	case "":
		return errors.New(errors.ErrCodeInvalidProblem, "missing EDGE_WEIGHT_TYPE")
	default:
		return errors.New(errors.ErrCodeInvalidProblem, "unsupported EDGE_WEIGHT_TYPE %q", inst.EdgeWeightType)
	}
	if !inst.HasCoords() {
		return errors.New(errors.ErrCodeInvalidProblem, "%s instance without NODE_COORD_SECTION", inst.EdgeWeightType)
	}
	inst.Matrix = matrixFromCoords(inst.Coords, dist)
	return nil
}

// explicitMatrix fills an n×n matrix from the weight stream in the given
// format. Triangular formats are mirrored; the column formats are the
// transposed row formats, which for a symmetric matrix swap upper and lower.
func explicitMatrix(n int, format string, w []float64) (*Matrix, error) {
	m := NewMatrix(n)
	var cells func(yield func(cell) bool)

	switch format {
	case FormatFullMatrix:
		cells = func(yield func(cell) bool) {
			for i := range n {
				for j := range n {
					if !yield(cell{i, j}) {
						return
					}
				}
			}
		}
	case FormatUpperRow, FormatLowerCol:
		cells = triangle(n, func(i, j int) bool { return j > i })
	case FormatLowerRow, FormatUpperCol:
		cells = triangle(n, func(i, j int) bool { return j < i })
	case FormatUpperDiagRow, FormatLowerDiagCol:
		cells = triangle(n, func(i, j int) bool { return j >= i })
	case FormatLowerDiagRow, FormatUpperDiagCol:
		cells = triangle(n, func(i, j int) bool { return j <= i })
	case "":
		return nil, errors.New(errors.ErrCodeInvalidProblem, "EXPLICIT instance without EDGE_WEIGHT_FORMAT")
	default:
		return nil, errors.New(errors.ErrCodeInvalidProblem, "unsupported EDGE_WEIGHT_FORMAT %q", format)
	}

	k := 0
	for c := range cells {
		if k >= len(w) {
			return nil, errors.New(errors.ErrCodeInvalidProblem,
				"EDGE_WEIGHT_SECTION too short for %s of dimension %d (%d values)", format, n, len(w))
		}
		m.Set(c.i, c.j, w[k])
		if format != FormatFullMatrix {
			m.Set(c.j, c.i, w[k])
		}
		k++
	}
	return m, nil
}

// cell is a matrix position.
type cell struct{ i, j int }

func triangle(n int, keep func(i, j int) bool) func(yield func(cell) bool) {
	return func(yield func(cell) bool) {
		for i := range n {
			for j := range n {
				if keep(i, j) && !yield(cell{i, j}) {
					return
				}
			}
		}
	}
}

// isKeyword reports whether line starts a header or section rather than data.
func isKeyword(line string) bool {
	c := line[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// splitHeader splits "KEY : VALUE", "KEY: VALUE" and "KEY VALUE".
func splitHeader(line string) (key, value string) {
	if k, v, ok := strings.Cut(line, ":"); ok {
		return strings.ToUpper(strings.TrimSpace(k)), strings.TrimSpace(v)
	}
	k, v, _ := strings.Cut(line, " ")
	return strings.ToUpper(strings.TrimSpace(k)), strings.TrimSpace(v)
}

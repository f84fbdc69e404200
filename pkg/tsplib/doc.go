// Package tsplib reads Traveling Salesman Problem instances in the TSPLIB
// format and turns them into distance matrices and batched objectives.
//
// Supported edge weight types are EXPLICIT (full matrix and every
// triangular row/column format), EUC_2D (unrounded Euclidean), CEIL_2D,
// ATT and GEO. Coordinates come from NODE_COORD_SECTION or
// DISPLAY_DATA_SECTION; a TOUR_SECTION is read as a 0-indexed tour.
//
// [Download] fetches and unpacks the public TSPLIB archive; [Load] resolves
// an instance by name in a data directory and attaches its optimal tour
// when one ships with it.
//
//	inst, err := tsplib.Load(dataDir, "burma14")
//	if err != nil {
//	    return err
//	}
//	engine, err := eda.New(cfg, inst.Matrix.Objective())
package tsplib

// Package geoindex maps coordinates to sortable geohash keys and produces
// the key ranges covering a circular search radius. Prefix order on the keys
// approximates spatial locality, so the store can bound candidates with
// plain range scans before a true-distance refinement pass.
package geoindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrOutOfRange is returned for coordinates outside the valid lat/lng domain.
var ErrOutOfRange = errors.New("coordinates out of range")

const (
	earthRadiusM = 6371000.0
	metersPerDeg = 111320.0

	// DefaultMaxRanges caps the number of ranges per query: the center cell
	// plus its eight neighbors.
	DefaultMaxRanges = 9
)

// Bounds is one geohash key range, [Start, End).
type Bounds struct {
	Start string
	End   string
}

// Validate rejects coordinates outside the valid domain.
func Validate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrOutOfRange, lat, lng)
	}
	return nil
}

// Encode returns the fixed-precision geohash for a coordinate.
func Encode(lat, lng float64) (string, error) {
	if err := Validate(lat, lng); err != nil {
		return "", err
	}
	return encode(lat, lng, EncodePrecision), nil
}

// DistanceM returns the Haversine distance between two points in meters.
// Symmetric, and zero for identical points.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	hSin := math.Sin(dLat / 2)
	vSin := math.Sin(dLng / 2)
	h := hSin*hSin + math.Cos(rLat1)*math.Cos(rLat2)*vSin*vSin

	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// BoundsForRadius decomposes the circle around (lat, lng) into geohash key
// ranges. Each range must be queried independently and the results unioned;
// the ranges over-cover, so callers refine with DistanceM. maxRanges <= 0
// selects DefaultMaxRanges; when a precision yields too many ranges the
// search coarsens one level rather than dropping coverage.
func BoundsForRadius(lat, lng, radiusM float64, maxRanges int) ([]Bounds, error) {
	if err := Validate(lat, lng); err != nil {
		return nil, err
	}
	if radiusM <= 0 {
		return nil, fmt.Errorf("%w: radius=%v", ErrOutOfRange, radiusM)
	}
	if maxRanges <= 0 {
		maxRanges = DefaultMaxRanges
	}

	for precision := precisionForRadius(lat, radiusM); precision >= 1; precision-- {
		center := encode(lat, lng, precision)
		cells := append([]string{center}, neighbors(center)...)
		ranges := mergeCells(cells)
		if len(ranges) <= maxRanges {
			return ranges, nil
		}
	}

	// Degenerate cap; scan the whole keyspace rather than miss results.
	return []Bounds{{Start: "0", End: "z~"}}, nil
}

// precisionForRadius picks the largest precision whose cell is at least
// radiusM in both dimensions at the query latitude, so the center cell and
// its eight neighbors fully cover the circle.
func precisionForRadius(lat float64, radiusM float64) int {
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}

	for precision := EncodePrecision; precision >= 1; precision-- {
		lngBits := (5*precision + 1) / 2
		latBits := 5 * precision / 2

		heightM := 180 / math.Pow(2, float64(latBits)) * metersPerDeg
		widthM := 360 / math.Pow(2, float64(lngBits)) * metersPerDeg * cosLat

		if math.Min(heightM, widthM) >= radiusM {
			return precision
		}
	}
	return 1
}

// mergeCells turns cells into sorted ranges, coalescing cells that are
// consecutive in base32 order into a single range.
func mergeCells(cells []string) []Bounds {
	seen := make(map[string]struct{}, len(cells))
	uniq := cells[:0]
	for _, c := range cells {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			uniq = append(uniq, c)
		}
	}
	sort.Strings(uniq)

	var out []Bounds
	for _, cell := range uniq {
		if n := len(out); n > 0 && nextCell(strings.TrimSuffix(out[n-1].End, "~")) == cell {
			out[n-1].End = cell + "~"
			continue
		}
		out = append(out, Bounds{Start: cell, End: cell + "~"})
	}
	return out
}

// nextCell returns the base32 successor of a cell within the same parent,
// or "" when the cell is the last child.
func nextCell(cell string) string {
	if cell == "" {
		return ""
	}
	idx := strings.IndexByte(base32, cell[len(cell)-1])
	if idx == -1 || idx == len(base32)-1 {
		return ""
	}
	return cell[:len(cell)-1] + string(base32[idx+1])
}

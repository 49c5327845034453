package geoindex

import "strings"

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// EncodePrecision is the stored hash length. Ten characters discriminate
// well below city-block scale; range queries use shorter prefixes.
const EncodePrecision = 10

// encode interleaves longitude and latitude bits into a base32 geohash.
func encode(lat, lng float64, precision int) string {
	var (
		sb       strings.Builder
		latRange = [2]float64{-90, 90}
		lngRange = [2]float64{-180, 180}
		bit      int
		ch       int
		evenBit  = true
	)

	for sb.Len() < precision {
		if evenBit {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng >= mid {
				ch = ch<<1 | 1
				lngRange[0] = mid
			} else {
				ch <<= 1
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				ch = ch<<1 | 1
				latRange[0] = mid
			} else {
				ch <<= 1
				latRange[1] = mid
			}
		}
		evenBit = !evenBit

		bit++
		if bit == 5 {
			sb.WriteByte(base32[ch])
			bit = 0
			ch = 0
		}
	}

	return sb.String()
}

// Lookup tables for the classic geohash neighbor walk.
var (
	neighborLookup = map[byte][2]string{
		'n': {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
		's': {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
		'e': {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
		'w': {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	}
	borderLookup = map[byte][2]string{
		'n': {"prxz", "bcfguvyz"},
		's': {"028b", "0145hjnp"},
		'e': {"bcfguvyz", "prxz"},
		'w': {"0145hjnp", "028b"},
	}
)

// adjacent returns the neighboring cell of hash in the given direction
// (n, s, e, w), or "" when no neighbor exists (polar edges).
func adjacent(hash string, direction byte) string {
	if hash == "" {
		return ""
	}

	last := hash[len(hash)-1]
	parent := hash[:len(hash)-1]
	parity := len(hash) % 2 // 0 even, 1 odd

	if strings.IndexByte(borderLookup[direction][parity], last) != -1 {
		parent = adjacent(parent, direction)
		if parent == "" && len(hash) > 1 {
			return ""
		}
	}

	idx := strings.IndexByte(neighborLookup[direction][parity], last)
	if idx == -1 {
		return ""
	}
	return parent + string(base32[idx])
}

// neighbors returns the eight cells surrounding hash, skipping any that do
// not exist at the poles.
func neighbors(hash string) []string {
	n := adjacent(hash, 'n')
	s := adjacent(hash, 's')

	out := make([]string, 0, 8)
	for _, h := range []string{
		n, adjacent(n, 'e'), adjacent(hash, 'e'), adjacent(s, 'e'),
		s, adjacent(s, 'w'), adjacent(hash, 'w'), adjacent(n, 'w'),
	} {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

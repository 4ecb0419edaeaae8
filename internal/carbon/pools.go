package carbon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"carbonweaver/internal/config"
)

// Pool is a carbon pool column of the pool table.
type Pool string

const (
	PoolAbove Pool = "c_above"
	PoolBelow Pool = "c_below"
	PoolSoil  Pool = "c_soil"
	PoolDead  Pool = "c_dead"
)

// Pools lists the pools in table order.
var Pools = []Pool{PoolAbove, PoolBelow, PoolSoil, PoolDead}

// LucodeColumn is the index column of the pool table.
const LucodeColumn = "lucode"

// PoolTable maps LULC codes to per-pool carbon densities in Mg/ha.
type PoolTable struct {
	rows map[int64][4]float64
}

// LoadPoolTable reads a CSV pool table. Headers are matched case
// insensitively and extra columns are ignored.
func LoadPoolTable(path string) (*PoolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening carbon pools table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading carbon pools header %s: %w", path, err)
	}

	index := map[string]int{}
	for i, h := range header {
		index[config.NormalizeColumn(h)] = i
	}
	cols := make([]int, 0, 1+len(Pools))
	for _, name := range append([]string{LucodeColumn}, poolNames()...) {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("carbon pools table %s: missing column %q", path, name)
		}
		cols = append(cols, i)
	}

	rows := map[int64][4]float64{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading carbon pools table %s: %w", path, err)
		}
		if blank(rec) {
			continue
		}

		code, err := parseCode(field(rec, cols[0]))
		if err != nil {
			return nil, fmt.Errorf("carbon pools table %s line %d: %w", path, line, err)
		}
		if _, dup := rows[code]; dup {
			return nil, fmt.Errorf("carbon pools table %s line %d: duplicate %s %d", path, line, LucodeColumn, code)
		}
		var d [4]float64
		for p := range Pools {
			s := field(rec, cols[p+1])
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("carbon pools table %s line %d: %s value %q is not a number", path, line, Pools[p], s)
			}
			d[p] = v
		}
		rows[code] = d
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("carbon pools table %s has no rows", path)
	}
	return &PoolTable{rows: rows}, nil
}

// Mapping returns the code to density lookup for one pool.
func (t *PoolTable) Mapping(p Pool) map[int64]float64 {
	idx := poolIndex(p)
	out := make(map[int64]float64, len(t.rows))
	for code, d := range t.rows {
		out[code] = d[idx]
	}
	return out
}

func poolIndex(p Pool) int {
	for i, q := range Pools {
		if q == p {
			return i
		}
	}
	panic(fmt.Sprintf("unknown carbon pool %q", p))
}

func poolNames() []string {
	out := make([]string, len(Pools))
	for i, p := range Pools {
		out[i] = string(p)
	}
	return out
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// parseCode accepts integer codes, including integer-valued decimals like "3.0".
func parseCode(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s %q is not an integer", LucodeColumn, s)
	}
	return int64(f), nil
}

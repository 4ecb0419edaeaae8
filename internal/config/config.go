// Package config decodes and validates the arguments of a carbon model run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// SyncWorkers is the n_workers value that runs every task in the calling
// goroutine. It is the default when n_workers is absent, nil, empty or not a
// number.
const SyncWorkers = -1

// Args are the inputs of one model run. The zero value selects the parallel
// executor with one worker; start from DefaultArgs for a serial run.
type Args struct {
	WorkspaceDir  string `mapstructure:"workspace_dir" yaml:"workspace_dir"`
	ResultsSuffix string `mapstructure:"results_suffix" yaml:"results_suffix"`
	NWorkers      int    `mapstructure:"n_workers" yaml:"n_workers"`

	LULCBasPath       string `mapstructure:"lulc_bas_path" yaml:"lulc_bas_path"`
	CalcSequestration bool   `mapstructure:"calc_sequestration" yaml:"calc_sequestration"`
	LULCAltPath       string `mapstructure:"lulc_alt_path" yaml:"lulc_alt_path"`
	CarbonPoolsPath   string `mapstructure:"carbon_pools_path" yaml:"carbon_pools_path"`

	DoValuation          bool    `mapstructure:"do_valuation" yaml:"do_valuation"`
	LULCBasYear          int     `mapstructure:"lulc_bas_year" yaml:"lulc_bas_year"`
	LULCAltYear          int     `mapstructure:"lulc_alt_year" yaml:"lulc_alt_year"`
	PricePerMetricTonOfC float64 `mapstructure:"price_per_metric_ton_of_c" yaml:"price_per_metric_ton_of_c"`
	DiscountRate         float64 `mapstructure:"discount_rate" yaml:"discount_rate"`
	RateChange           float64 `mapstructure:"rate_change" yaml:"rate_change"`
}

// DefaultArgs returns Args with every task run serially.
func DefaultArgs() Args {
	return Args{NWorkers: SyncWorkers}
}

// Load reads a YAML args file into a raw map suitable for Validate and Decode.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading args file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing args file %s: %w", path, err)
	}
	return raw, nil
}

// Decode converts raw args into Args. Strings such as "2020" are accepted for
// numeric fields and n_workers falls back to SyncWorkers.
func Decode(raw map[string]any) (Args, error) {
	in := make(map[string]any, len(raw))
	for k, v := range raw {
		in[k] = v
	}
	in["n_workers"] = Workers(raw["n_workers"])

	args := DefaultArgs()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return Args{}, err
	}
	if err := dec.Decode(in); err != nil {
		return Args{}, fmt.Errorf("decoding args: %w", err)
	}
	return args, nil
}

// Workers interprets a raw n_workers value. Anything that is not an integer
// count yields SyncWorkers. Validate still reports such values, so the CLI
// rejects them before they reach Workers.
func Workers(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
			return int(f)
		}
	}
	return SyncWorkers
}

// Fields returns the args as a key/value map using their file names.
func (a Args) Fields() map[string]any {
	out := map[string]any{}
	// struct to map decoding cannot fail for Args
	_ = mapstructure.Decode(a, &out)
	return out
}

// HasAlternate reports whether the alternate scenario is active.
func (a Args) HasAlternate() bool {
	return strings.TrimSpace(a.LULCAltPath) != ""
}

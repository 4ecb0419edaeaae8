package config

// Kind is the expected type of an argument value.
type Kind int

const (
	KindString Kind = iota
	KindDirectory
	KindRaster
	KindCSV
	KindNumber
	KindInteger
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRaster:
		return "raster"
	case KindCSV:
		return "csv"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Field is one entry of the argument schema.
type Field struct {
	Name string
	Kind Kind

	// Required fields must be present and non-empty.
	Required bool
	// RequiredIf names a boolean field; when it is true this field is required.
	RequiredIf string

	// Min is an inclusive lower bound for numeric kinds.
	Min *float64
	// Columns lists the header names a CSV must contain.
	Columns []string
}

// SpatialKeys are raster fields that must share pixel size and dimensions.
var SpatialKeys = []string{"lulc_bas_path", "lulc_alt_path"}

func minValue(v float64) *float64 { return &v }

// Schema describes every argument of a carbon run, in report order.
var Schema = []Field{
	{Name: "workspace_dir", Kind: KindDirectory, Required: true},
	{Name: "results_suffix", Kind: KindString},
	{Name: "n_workers", Kind: KindInteger, Min: minValue(SyncWorkers)},
	{Name: "lulc_bas_path", Kind: KindRaster, Required: true},
	{Name: "calc_sequestration", Kind: KindBoolean, RequiredIf: "do_valuation"},
	{Name: "lulc_alt_path", Kind: KindRaster, RequiredIf: "calc_sequestration"},
	{
		Name:     "carbon_pools_path",
		Kind:     KindCSV,
		Required: true,
		Columns:  []string{"lucode", "c_above", "c_below", "c_soil", "c_dead"},
	},
	{Name: "lulc_bas_year", Kind: KindInteger, RequiredIf: "do_valuation"},
	{Name: "lulc_alt_year", Kind: KindInteger, RequiredIf: "do_valuation"},
	{Name: "do_valuation", Kind: KindBoolean},
	{Name: "price_per_metric_ton_of_c", Kind: KindNumber, RequiredIf: "do_valuation"},
	{Name: "discount_rate", Kind: KindNumber, RequiredIf: "do_valuation"},
	{Name: "rate_change", Kind: KindNumber, RequiredIf: "do_valuation"},
}

// Lookup returns the schema field with the given name.
func Lookup(name string) (Field, bool) {
	for _, f := range Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

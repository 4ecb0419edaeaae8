package cli

import (
	"path/filepath"
	"strings"

	"carbonweaver/internal/config"
)

// pathKeys are the args that name files or directories. Relative values are
// resolved against the directory of the args file, never the process CWD.
var pathKeys = []string{"workspace_dir", "lulc_bas_path", "lulc_alt_path", "carbon_pools_path"}

// loadArgs reads the args file and applies flag overrides.
func loadArgs(path string, overrides map[string]any) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, invalidInvocationf("--config is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, invalidInvocationf("resolving --config: %v", err)
	}
	raw, err := config.Load(abs)
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	for k, v := range overrides {
		raw[k] = v
	}
	resolvePaths(raw, filepath.Dir(abs))
	return raw, nil
}

func resolvePaths(raw map[string]any, base string) {
	for _, k := range pathKeys {
		v, ok := raw[k].(string)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		clean := filepath.Clean(v)
		if !filepath.IsAbs(clean) {
			clean = filepath.Join(base, clean)
		}
		raw[k] = clean
	}
}

// decodeArgs validates raw args and decodes them.
func decodeArgs(raw map[string]any) (config.Args, error) {
	if issues := config.Validate(raw, ""); len(issues) > 0 {
		return config.Args{}, &IssuesError{Issues: issues}
	}
	args, err := config.Decode(raw)
	if err != nil {
		return config.Args{}, configErrorf("%v", err)
	}
	return args, nil
}

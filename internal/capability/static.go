package capability

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// staticFile is the on-disk shape of the static fallback backend
// table, used whenever the directory is standalone or returns no
// records.
type staticFile struct {
	Backends []BackendRecord `yaml:"backends"`
}

// LoadStaticBackends reads the static fallback backend table from a
// YAML file at path. It is the routing table's last resort: consulted
// only when the directory client is standalone or a discovery round
// returns nothing.
func LoadStaticBackends(path string) ([]BackendRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capability: read static backends: %w", err)
	}
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("capability: parse static backends: %w", err)
	}
	return f.Backends, nil
}

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegionConfig is one regional deployment as written in the topology file.
type RegionConfig struct {
	Name      string   `yaml:"name"`
	Residency string   `yaml:"residency"`
	Central   bool     `yaml:"central"`
	Countries []string `yaml:"countries"`
	// DSN may reference environment variables, e.g. ${EU_WEST_DSN}.
	DSN string `yaml:"dsn"`
}

// Topology is the region layout. The same file may carry an entities block
// read by the policy loader.
type Topology struct {
	Regions []RegionConfig `yaml:"regions"`
	// EUCountries overrides the built-in EU/EEA country set when non-empty.
	EUCountries []string `yaml:"euCountries"`
}

// LoadTopology reads and validates a topology file.
func LoadTopology(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, fmt.Errorf("read topology: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes topology YAML and expands environment references in
// DSNs.
func ParseTopology(data []byte) (Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Topology{}, fmt.Errorf("parse topology: %w", err)
	}
	for i := range t.Regions {
		t.Regions[i].DSN = os.ExpandEnv(t.Regions[i].DSN)
	}
	if err := t.Validate(); err != nil {
		return Topology{}, err
	}
	return t, nil
}

func (t Topology) Validate() error {
	if len(t.Regions) == 0 {
		return fmt.Errorf("topology: no regions")
	}
	seen := make(map[string]bool, len(t.Regions))
	for _, r := range t.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("topology: region without name")
		}
		if seen[r.Name] {
			return fmt.Errorf("topology: duplicate region %q", r.Name)
		}
		seen[r.Name] = true
		if r.Residency == "" {
			return fmt.Errorf("topology: region %q has no residency", r.Name)
		}
	}
	return nil
}

// DSNs maps region name to its connection string, skipping regions without one.
func (t Topology) DSNs() map[string]string {
	out := make(map[string]string, len(t.Regions))
	for _, r := range t.Regions {
		if r.DSN != "" {
			out[r.Name] = r.DSN
		}
	}
	return out
}

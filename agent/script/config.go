package script

import (
	"fmt"
	"os"
	"time"

	"github.com/mohitkumar/procflow/definition"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Id           string   `yaml:"id"`
	Capabilities []string `yaml:"capabilities"`
	// Framework narrows definition lookups for requirements.
	Framework  string            `yaml:"framework"`
	Timeout    time.Duration     `yaml:"timeout"`
	Activities map[string]string `yaml:"activities"`
}

type File struct {
	Agents []Config `yaml:"agents"`
}

func ParseConfig(data []byte) ([]Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("agents file: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Agents))
	for _, c := range f.Agents {
		if _, ok := seen[c.Id]; ok {
			return nil, fmt.Errorf("agents file: agent %s is duplicate", c.Id)
		}
		seen[c.Id] = struct{}{}
	}
	return f.Agents, nil
}

func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// LoadAgents builds every agent declared in the file at path.
func LoadAgents(path string, store definition.Store) ([]*Agent, error) {
	confs, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	agents := make([]*Agent, 0, len(confs))
	for _, c := range confs {
		a, err := New(c, store)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

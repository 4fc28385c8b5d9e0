package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mohitkumar/procflow/model"
	"gopkg.in/yaml.v3"
)

// ParseFramework decodes a framework document. JSON documents are accepted
// as well since they are valid YAML.
func ParseFramework(data []byte) (*model.Framework, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("definition: framework payload is empty")
	}
	var fw model.Framework
	if err := yaml.Unmarshal(data, &fw); err != nil {
		return nil, fmt.Errorf("definition: decode framework: %w", err)
	}
	if err := Validate(&fw); err != nil {
		return nil, err
	}
	return &fw, nil
}

func LoadFrameworkFile(path string) (*model.Framework, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("definition: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("definition: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: read %s: %w", path, err)
	}
	fw, err := ParseFramework(data)
	if err != nil {
		return nil, fmt.Errorf("definition: %s: %w", path, err)
	}
	return fw, nil
}

// LoadDir parses every .yaml, .yml and .json file of dir, sorted by file
// name. A missing directory yields no frameworks.
func LoadDir(dir string) ([]*model.Framework, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("definition: read %s: %w", trimmed, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(trimmed, entry.Name()))
	}
	sort.Strings(paths)
	var frameworks []*model.Framework
	for _, path := range paths {
		fw, err := LoadFrameworkFile(path)
		if err != nil {
			return nil, err
		}
		frameworks = append(frameworks, fw)
	}
	return frameworks, nil
}

// Load accepts either a single definition file or a directory of them and
// returns a populated registry.
func Load(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("definition: stat %s: %w", path, err)
	}
	var frameworks []*model.Framework
	if info.IsDir() {
		frameworks, err = LoadDir(path)
	} else {
		var fw *model.Framework
		fw, err = LoadFrameworkFile(path)
		frameworks = []*model.Framework{fw}
	}
	if err != nil {
		return nil, err
	}
	return NewRegistry(frameworks...)
}

func isDefinitionFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}

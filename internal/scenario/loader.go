package scenario

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func isDataFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yml", ".yaml":
		return true
	}
	return false
}

func fileID(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// LoadScenarios walks dir and registers every scenario file found. The id
// defaults to the file name and the type to the first sub-directory (or
// "general"). Malformed files are logged and skipped. A missing dir loads
// nothing.
func (r *Registry) LoadScenarios(dir string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			r.log.Warn("scenario directory not found", "dir", dir)
			return 0, nil
		}
		return 0, err
	}
	loaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDataFile(d.Name()) {
			return nil
		}
		sc, err := readScenario(path)
		if err != nil {
			r.log.Error("skip scenario file", "path", path, "error", err)
			return nil
		}
		id := fileID(path)
		if sc.ID == "" {
			sc.ID = id
		} else if sc.ID != id {
			r.log.Warn("scenario id does not match file name", "path", path, "id", sc.ID, "file", id)
		}
		if sc.Type == "" {
			sc.Type = typeFromPath(dir, path)
		}
		if err := r.Add(sc); err != nil {
			r.log.Error("skip scenario", "path", path, "error", err)
			return nil
		}
		r.log.Debug("scenario loaded", "id", sc.ID, "type", sc.Type)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("walk scenarios: %w", err)
	}
	r.log.Info("scenarios loaded", "count", loaded)
	return loaded, nil
}

// LoadTemplates registers every task template file directly inside dir,
// keyed by file name.
func (r *Registry) LoadTemplates(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !isDataFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Error("skip task template", "path", path, "error", err)
			continue
		}
		var spec TaskSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			r.log.Error("skip task template", "path", path, "error", err)
			continue
		}
		if err := r.AddTemplate(fileID(path), spec); err != nil {
			r.log.Error("skip task template", "path", path, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Save writes sc as YAML to <dir>/<type>/<id>.yml and registers it.
func (r *Registry) Save(dir string, sc Scenario) error {
	if sc.Type == "" {
		sc.Type = TypeGeneral
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	typeDir := filepath.Join(dir, sc.Type)
	if err := os.MkdirAll(typeDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", typeDir, err)
	}
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal scenario %s: %w", sc.ID, err)
	}
	path := filepath.Join(typeDir, sc.ID+".yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	r.scenarios[sc.ID] = sc
	r.log.Info("scenario saved", "id", sc.ID, "path", path)
	return nil
}

// JSON is a subset of YAML, so one decoder reads both formats.
func readScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func typeFromPath(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return TypeGeneral
	}
	return strings.Split(filepath.ToSlash(rel), "/")[0]
}

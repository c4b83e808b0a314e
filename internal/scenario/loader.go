package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// Parse decodes and validates a single YAML scenario document. Unknown keys
// are rejected so typos surface at load time rather than as silent no-ops.
func Parse(data []byte, source string) (schemas.Scenario, error) {
	var sc schemas.Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return schemas.Scenario{}, fmt.Errorf("%s: empty scenario document", source)
		}
		return schemas.Scenario{}, fmt.Errorf("%s: failed to decode scenario: %w", source, err)
	}
	sc.Source = source

	for i := range sc.Assertions {
		if sc.Assertions[i].ID == "" {
			sc.Assertions[i].ID = fmt.Sprintf("A%d", i+1)
		}
	}

	if err := Validate(sc); err != nil {
		return schemas.Scenario{}, fmt.Errorf("%s: %w", source, err)
	}
	return sc, nil
}

// Load reads a scenario file. A leading ~ expands to the home directory.
func Load(file string) (schemas.Scenario, error) {
	expanded, err := homedir.Expand(file)
	if err != nil {
		return schemas.Scenario{}, fmt.Errorf("failed to expand path %s: %w", file, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return schemas.Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data, expanded)
}

// LoadDir loads every *.yaml and *.yml file in dir.
func LoadDir(dir string) ([]schemas.Scenario, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %s: %w", dir, err)
	}
	scenarios, err := LoadFS(os.DirFS(expanded), ".")
	if err != nil {
		return nil, err
	}
	for i := range scenarios {
		scenarios[i].Source = filepath.Join(expanded, filepath.FromSlash(scenarios[i].Source))
	}
	return scenarios, nil
}

// LoadFS loads every scenario file in dir of fsys, sorted by name. Scenario
// names must be unique. Errors from all files are reported together.
func LoadFS(fsys fs.FS, dir string) ([]schemas.Scenario, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var (
		scenarios []schemas.Scenario
		errs      error
		seen      = make(map[string]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !isScenarioFile(entry.Name()) {
			continue
		}
		file := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to read %s: %w", file, err))
			continue
		}
		sc, err := Parse(data, file)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if prev, dup := seen[sc.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: scenario %q already defined in %s", file, sc.Name, prev))
			continue
		}
		seen[sc.Name] = file
		scenarios = append(scenarios, sc)
	}
	if errs != nil {
		return nil, errs
	}

	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

func isScenarioFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Merge returns base with every scenario of overrides added, replacing any
// base scenario of the same name. The result is sorted by name.
func Merge(base, overrides []schemas.Scenario) []schemas.Scenario {
	byName := make(map[string]schemas.Scenario, len(base)+len(overrides))
	for _, sc := range base {
		byName[sc.Name] = sc
	}
	for _, sc := range overrides {
		byName[sc.Name] = sc
	}
	merged := make([]schemas.Scenario, 0, len(byName))
	for _, sc := range byName {
		merged = append(merged, sc)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged
}

// Find selects scenarios by name, in the order given.
func Find(scenarios []schemas.Scenario, names ...string) ([]schemas.Scenario, error) {
	byName := make(map[string]schemas.Scenario, len(scenarios))
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}

	var (
		found   []schemas.Scenario
		missing []string
	)
	for _, name := range names {
		sc, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		found = append(found, sc)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown scenario(s): %s", strings.Join(missing, ", "))
	}
	return found, nil
}

// Validate checks a scenario for structural problems and reports all of
// them at once.
func Validate(sc schemas.Scenario) error {
	var errs error
	if strings.TrimSpace(sc.Name) == "" {
		errs = multierr.Append(errs, errors.New("scenario name is required"))
	}

	for i, step := range sc.Steps {
		errs = multierr.Append(errs, validateStep(i, step))
	}

	if len(sc.Assertions) == 0 {
		errs = multierr.Append(errs, errors.New("scenario must declare at least one assertion"))
	}
	ids := make(map[string]bool, len(sc.Assertions))
	for i, a := range sc.Assertions {
		where := fmt.Sprintf("assertion %d", i+1)
		if a.ID != "" {
			where = fmt.Sprintf("assertion %s", a.ID)
		}
		if strings.TrimSpace(a.Target) == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: target is required", where))
		}
		if a.Timeout < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: timeout must not be negative", where))
		}
		if a.ID != "" && ids[a.ID] {
			errs = multierr.Append(errs, fmt.Errorf("%s: duplicate assertion id", where))
		}
		ids[a.ID] = true
	}
	return errs
}

func validateStep(i int, step schemas.Step) error {
	where := fmt.Sprintf("step %d (%s)", i+1, step.Label())
	if !step.Action.Valid() {
		return fmt.Errorf("%s: unknown action %q", where, step.Action)
	}

	var errs error
	if step.Action.Targeted() && strings.TrimSpace(step.Target) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s: target is required", where))
	}
	switch step.Action {
	case schemas.ActionFill:
		if step.Value == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: value is required", where))
		}
	case schemas.ActionNavigate:
		if strings.TrimSpace(step.URL) == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: url is required", where))
		}
	case schemas.ActionWait:
		if step.Duration <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: duration must be positive", where))
		}
	}
	if step.Nth < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: nth must not be negative", where))
	}
	if step.Timeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: timeout must not be negative", where))
	}
	if step.Dwell != nil && *step.Dwell < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: dwell must not be negative", where))
	}
	return errs
}

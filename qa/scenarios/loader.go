// Package scenarios runs YAML described production days through the solver
// and checks the outcome against expectations.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/showplan/core/planner"
)

// GapExpectation describes one main zone gap and its explanation code.
type GapExpectation struct {
	Space int    `yaml:"space"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Code  string `yaml:"code"`
}

// Expected lists the checks of a scenario. Unset fields are not checked.
type Expected struct {
	// Error is "", "infeasible" or "error".
	Error              string           `yaml:"error,omitempty"`
	Feasible           *bool            `yaml:"feasible,omitempty"`
	Complete           *bool            `yaml:"complete,omitempty"`
	Reasons            []string         `yaml:"reasons,omitempty"`
	Slots              map[int]string   `yaml:"slots,omitempty"`
	Unplanned          map[int]string   `yaml:"unplanned,omitempty"`
	Warnings           []string         `yaml:"warnings,omitempty"`
	CapacityImpossible *bool            `yaml:"capacity_impossible,omitempty"`
	Gaps               []GapExpectation `yaml:"gaps,omitempty"`
}

// Scenario is one production day with its expectations. When Plan is set the
// solver is skipped and only the gap explanations of that plan are checked.
type Scenario struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description,omitempty"`
	InputFile   string                `yaml:"input_file,omitempty"`
	Input       planner.Input         `yaml:"input"`
	Strict      bool                  `yaml:"strict,omitempty"`
	Plan        []planner.PlannedTask `yaml:"plan,omitempty"`
	Expected    Expected              `yaml:"expected"`
}

// Load reads a scenario file. A relative input_file resolves against the
// scenario's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}
	if sc.InputFile != "" {
		p := sc.InputFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		if sc.Input, err = planner.LoadInput(p); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml scenario of dir in name order.
func LoadDir(dir string) ([]*Scenario, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Package rules selects which quirks apply to a device from its product and endpoint data. Rules are grouped
// into rule sets which may depend on each other, filters are expr expressions evaluated against Input.
package rules

import (
	"fmt"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

type Engine struct {
	RuleSets map[string]RuleSet
	Rules    []CompiledRule
}

func New() *Engine {
	return &Engine{RuleSets: map[string]RuleSet{}}
}

type Quirks struct {
	Add    []string `yaml:"add"`
	Remove []string `yaml:"remove"`
}

type Actions struct {
	Quirks   Quirks   `yaml:"quirks"`
	Settings Settings `yaml:"settings"`
}

type Rule struct {
	Description string  `yaml:"description"`
	Filter      string  `yaml:"filter"`
	Actions     Actions `yaml:"actions"`
	Children    []Rule  `yaml:"children"`
}

type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Actions     Actions
	Children    []CompiledRule
}

type RuleSet struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
	Rules     []Rule   `yaml:"rules"`
}

type InputProductData struct {
	Name         string
	Manufacturer string
	Version      string
	Serial       string
}

type InputNode struct {
	ManufacturerCode uint16
	Type             string
}

type InputEndpoint struct {
	ID          uint8
	ProfileID   uint16
	DeviceID    uint16
	InClusters  []uint16
	OutClusters []uint16
}

type Input struct {
	Product  InputProductData
	Node     InputNode
	Endpoint InputEndpoint
}

type Output struct {
	Quirks   []string
	Settings Settings
}

func (e *Engine) LoadString(s string) error {
	return e.LoadReader(strings.NewReader(s))
}

func (e *Engine) LoadReader(r io.Reader) error {
	var rs RuleSet

	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return fmt.Errorf("ruleset parse: %w", err)
	}

	if rs.Name == "" {
		return fmt.Errorf("ruleset parse: missing name")
	}

	if _, found := e.RuleSets[rs.Name]; found {
		return fmt.Errorf("ruleset already loaded: %s", rs.Name)
	}

	if e.RuleSets == nil {
		e.RuleSets = map[string]RuleSet{}
	}

	e.RuleSets[rs.Name] = rs
	return nil
}

// LoadFS loads every yaml or json file in the file system as a rule set.
func (e *Engine) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		switch path.Ext(p) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := e.LoadReader(f); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		return nil
	})
}

func (e *Engine) CompileRules() error {
	alreadyLoaded := map[string]bool{}

	for k := range e.RuleSets {
		alreadyLoaded[k] = false
	}

	names := make([]string, 0, len(e.RuleSets))
	for k := range e.RuleSets {
		names = append(names, k)
	}
	sort.Strings(names)

	e.Rules = nil

	for _, k := range names {
		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, []string{}, k); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) compileRuleSet(alreadyLoaded map[string]bool, trail []string, name string) error {
	rs, ok := e.RuleSets[name]
	if !ok {
		return fmt.Errorf("ruleset missing dependency: %s->%s", strings.Join(trail, "->"), name)
	}

	trail = append(trail, rs.Name)

	for _, k := range rs.DependsOn {
		for _, t := range trail {
			if k == t {
				return fmt.Errorf("ruleset circular dependency: %s->%s", strings.Join(trail, "->"), k)
			}
		}

		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, trail, k); err != nil {
				return err
			}
		}
	}

	if cr, err := compileRules(rs.Rules); err != nil {
		return fmt.Errorf("ruleset compilation: %s: %w", strings.Join(trail, "->"), err)
	} else {
		e.Rules = append(e.Rules, cr...)
	}

	alreadyLoaded[name] = true

	return nil
}

func compileRules(rules []Rule) ([]CompiledRule, error) {
	var compiledRules []CompiledRule

	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter compilation: %w", err)
		}

		if childCompiledRules, err := compileRules(rule.Children); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		} else {
			compiledRules = append(compiledRules, CompiledRule{
				Description: rule.Description,
				Filter:      cf,
				Actions:     rule.Actions,
				Children:    childCompiledRules,
			})
		}
	}

	return compiledRules, nil
}

// Execute evaluates every compiled rule in order, descending into the children of those that match. Later
// rules override the settings of earlier ones and may remove quirks they added.
func (e *Engine) Execute(i Input) (Output, error) {
	quirks := map[string]bool{}
	settings := Settings{}

	if err := execute(e.Rules, i, quirks, &settings); err != nil {
		return Output{}, err
	}

	o := Output{Settings: settings}

	for k := range quirks {
		o.Quirks = append(o.Quirks, k)
	}
	sort.Strings(o.Quirks)

	return o, nil
}

func execute(rules []CompiledRule, i Input, quirks map[string]bool, settings *Settings) error {
	for _, r := range rules {
		out, err := expr.Run(r.Filter, i)
		if err != nil {
			return fmt.Errorf("filter execution: %s: %w", r.Description, err)
		}

		if matched, ok := out.(bool); !ok || !matched {
			continue
		}

		for _, q := range r.Actions.Quirks.Add {
			quirks[q] = true
		}

		for _, q := range r.Actions.Quirks.Remove {
			delete(quirks, q)
		}

		*settings = settings.merge(r.Actions.Settings)

		if err := execute(r.Children, i, quirks, settings); err != nil {
			return err
		}
	}

	return nil
}

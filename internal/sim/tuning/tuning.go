package tuning

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"foundation.ai/internal/sim/agents"
)

const PlannerNone = "none"

// EnvConfig is env.yaml: which agents to build and the ordered component list
// every agent is composed against.
type EnvConfig struct {
	ScenarioName string `yaml:"scenario_name"`

	NAgents     int    `yaml:"n_agents"`
	NRegions    int    `yaml:"n_regions"`
	AgentKind   string `yaml:"agent_kind"`
	PlannerKind string `yaml:"planner_kind"`

	MultiActionModeAgents  bool `yaml:"multi_action_mode_agents"`
	MultiActionModePlanner bool `yaml:"multi_action_mode_planner"`

	EpisodeLength int    `yaml:"episode_length"`
	WorldSize     [2]int `yaml:"world_size"`

	Components []ComponentSpec `yaml:"components"`
}

type ComponentSpec struct {
	Name   string    `yaml:"name"`
	Params yaml.Node `yaml:"params,omitempty"`
}

func Defaults() EnvConfig {
	return EnvConfig{
		ScenarioName:           "layout_from_file/simple_wood_and_stone",
		NAgents:                4,
		NRegions:               1,
		AgentKind:              string(agents.KindBasicMobile),
		PlannerKind:            string(agents.KindBasicPlanner),
		MultiActionModeAgents:  false,
		MultiActionModePlanner: true,
		EpisodeLength:          1000,
		WorldSize:              [2]int{25, 25},
		Components: []ComponentSpec{
			{Name: "Build"},
			{Name: "ContinuousDoubleAuction"},
			{Name: "Gather"},
			{Name: "PeriodicBracketTax"},
		},
	}
}

func Load(path string) (EnvConfig, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(raw)
}

// Parse decodes env.yaml content on top of Defaults.
func Parse(raw []byte) (EnvConfig, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("env.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("env.yaml: %w", err)
	}
	return cfg, nil
}

func (c *EnvConfig) Normalize() {
	if c == nil {
		return
	}
	c.ScenarioName = strings.TrimSpace(c.ScenarioName)
	c.AgentKind = strings.TrimSpace(c.AgentKind)
	c.PlannerKind = strings.TrimSpace(c.PlannerKind)
	if c.PlannerKind == "" {
		c.PlannerKind = PlannerNone
	}
	if c.NRegions <= 0 {
		c.NRegions = 1
	}
	for i := range c.Components {
		c.Components[i].Name = strings.TrimSpace(c.Components[i].Name)
	}
}

func (c EnvConfig) Validate() error {
	v, err := c.schemaView()
	if err != nil {
		return err
	}
	s, err := envSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, comp := range c.Components {
		if seen[comp.Name] {
			return fmt.Errorf("duplicate component %q", comp.Name)
		}
		seen[comp.Name] = true
	}
	if c.PlannerKind == string(agents.KindBasicPlanner) && seen[agents.RegionalTaxOrchestrator] {
		return fmt.Errorf("%s requires planner_kind MultiPlanner", agents.RegionalTaxOrchestrator)
	}
	if c.PlannerKind == string(agents.KindMultiPlanner) {
		for i := range c.Components {
			if c.Components[i].Name != agents.RegionalTaxOrchestrator {
				continue
			}
			if n, ok := ParamRegions(&c.Components[i].Params); ok && n != c.NRegions {
				return fmt.Errorf("%s: n_regions %d does not match n_regions %d", agents.RegionalTaxOrchestrator, n, c.NRegions)
			}
		}
	}
	return nil
}

// ParamRegions reports the n_regions value set in a component's params, if any.
// Malformed params are left for the component constructor to reject.
func ParamRegions(params *yaml.Node) (int, bool) {
	if params == nil || params.Kind != yaml.MappingNode {
		return 0, false
	}
	var v struct {
		NRegions *int `yaml:"n_regions"`
	}
	if err := params.Decode(&v); err != nil || v.NRegions == nil {
		return 0, false
	}
	return *v.NRegions, true
}

// Digest identifies the effective config; params are hashed as written.
func (c EnvConfig) Digest() string {
	h := sha256.New()
	v, err := c.schemaView()
	if err != nil {
		return ""
	}
	b, _ := json.Marshal(v)
	h.Write(b)
	for i := range c.Components {
		p := &c.Components[i].Params
		if p.Kind == 0 {
			continue
		}
		pb, err := yaml.Marshal(p)
		if err != nil {
			return ""
		}
		fmt.Fprintf(h, "\n%s:", c.Components[i].Name)
		h.Write(pb)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type schemaComponent struct {
	Name string `json:"name"`
}

type schemaDoc struct {
	ScenarioName           string            `json:"scenario_name"`
	NAgents                int               `json:"n_agents"`
	NRegions               int               `json:"n_regions"`
	AgentKind              string            `json:"agent_kind"`
	PlannerKind            string            `json:"planner_kind"`
	MultiActionModeAgents  bool              `json:"multi_action_mode_agents"`
	MultiActionModePlanner bool              `json:"multi_action_mode_planner"`
	EpisodeLength          int               `json:"episode_length"`
	WorldSize              [2]int            `json:"world_size"`
	Components             []schemaComponent `json:"components"`
}

// schemaView renders the config as generic JSON for schema validation.
// Component params are checked by each component's constructor instead.
func (c EnvConfig) schemaView() (any, error) {
	doc := schemaDoc{
		ScenarioName:           c.ScenarioName,
		NAgents:                c.NAgents,
		NRegions:               c.NRegions,
		AgentKind:              c.AgentKind,
		PlannerKind:            c.PlannerKind,
		MultiActionModeAgents:  c.MultiActionModeAgents,
		MultiActionModePlanner: c.MultiActionModePlanner,
		EpisodeLength:          c.EpisodeLength,
		WorldSize:              c.WorldSize,
		Components:             make([]schemaComponent, 0, len(c.Components)),
	}
	for _, comp := range c.Components {
		doc.Components = append(doc.Components, schemaComponent{Name: comp.Name})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

//go:embed env.schema.json
var envSchemaJSON string

var (
	envSchemaOnce sync.Once
	envSchemaVal  *jsonschema.Schema
	envSchemaErr  error
)

func envSchema() (*jsonschema.Schema, error) {
	envSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("env.schema.json", strings.NewReader(envSchemaJSON)); err != nil {
			envSchemaErr = err
			return
		}
		envSchemaVal, envSchemaErr = c.Compile("env.schema.json")
	})
	return envSchemaVal, envSchemaErr
}

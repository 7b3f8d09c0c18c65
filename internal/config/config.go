package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/types"
)

// Defaults applied when the config file leaves a field empty.
const (
	DefaultModel      = "gemini-1.5-flash"
	DefaultMaxHistory = 10
)

// DefaultClosingWords are the terminal phrasings recognised in agent
// output alongside each client's closing line.
var DefaultClosingWords = []string{
	"au revoir", "à bientôt", "fin", "quitter", "arrêter", "terminer", "raccrocher",
}

// ConfigError marks a fatal configuration problem. The run aborts before
// any scenario starts when one is returned.
type ConfigError struct {
	Client string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Client == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config: client %q: %s", e.Client, e.Reason)
}

// AgentSettings are the per-run knobs shared by every session.
type AgentSettings struct {
	Model          string   `yaml:"model"`
	MaxHistory     int      `yaml:"max_history"`
	TimeoutSec     int      `yaml:"timeout_sec"`
	ClosingWords   []string `yaml:"closing_words"`
	HandoffPhrases []string `yaml:"handoff_phrases"`
}

// CallTimeout is the fixed budget for one respond call, retry included.
func (a AgentSettings) CallTimeout() time.Duration {
	if a.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSec) * time.Second
}

// Config is the parsed configuration file: agent settings, the client
// profile map keyed by case-sensitive client id, and an optional scenario
// catalog overriding the built-in one.
type Config struct {
	Agent     AgentSettings                  `yaml:"agent"`
	Clients   map[string]types.ClientProfile `yaml:"clients"`
	Scenarios []types.ScenarioDefinition     `yaml:"scenarios"`
}

// Load reads and validates the YAML configuration. Enum fields with
// unknown values fall back to defaults here, once, so use-sites never
// re-check them. Missing client_name or closing_line is fatal.
func Load(path string) (*Config, error) {
	log := logger.New().WithField("component", "config").WithField("path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	if len(cfg.Clients) == 0 {
		return nil, &ConfigError{Reason: "no clients configured"}
	}

	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModel
	}
	if cfg.Agent.MaxHistory <= 0 {
		cfg.Agent.MaxHistory = DefaultMaxHistory
	}
	if len(cfg.Agent.ClosingWords) == 0 {
		cfg.Agent.ClosingWords = DefaultClosingWords
	}

	for id, p := range cfg.Clients {
		normalized, err := normalizeProfile(id, p)
		if err != nil {
			return nil, err
		}
		cfg.Clients[id] = normalized
	}

	for i, sc := range cfg.Scenarios {
		normalized, err := normalizeScenario(sc)
		if err != nil {
			return nil, err
		}
		cfg.Scenarios[i] = normalized
	}

	log.WithField("clients", len(cfg.Clients)).
		WithField("scenarios", len(cfg.Scenarios)).
		Info("configuration loaded")
	return &cfg, nil
}

// Profile returns the validated profile for a client id.
func (c *Config) Profile(id string) (types.ClientProfile, error) {
	p, ok := c.Clients[id]
	if !ok {
		return types.ClientProfile{}, &ConfigError{Client: id, Reason: "unknown client"}
	}
	return p, nil
}

// ClientIDs returns every configured client id in sorted order.
func (c *Config) ClientIDs() []string {
	ids := make([]string, 0, len(c.Clients))
	for id := range c.Clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeProfile(id string, p types.ClientProfile) (types.ClientProfile, error) {
	log := logger.New().WithField("component", "config").WithField("client_id", id)

	if p.ClientName == "" {
		return p, &ConfigError{Client: id, Reason: "client_name is required"}
	}
	if p.ClosingLine == "" {
		return p, &ConfigError{Client: id, Reason: "closing_line is required"}
	}
	if p.PaymentLabel == "" {
		p.PaymentLabel = "le paiement"
	}

	switch p.Tone {
	case types.ToneFormal, types.ToneProfessional, types.ToneCollaborative:
	default:
		if p.Tone != "" {
			log.WithField("tone", p.Tone).Warn("unknown tone, using professional")
		}
		p.Tone = types.ToneProfessional
	}

	switch p.FormalityLevel {
	case types.FormalityHigh, types.FormalityMedium, types.FormalityLow:
	default:
		if p.FormalityLevel != "" {
			log.WithField("formality_level", p.FormalityLevel).Warn("unknown formality level, using medium")
		}
		p.FormalityLevel = types.FormalityMedium
	}

	switch p.Phrasing {
	case types.PhrasingConcise, types.PhrasingDirect, types.PhrasingConversational:
	default:
		if p.Phrasing != "" {
			log.WithField("phrasing", p.Phrasing).Warn("unknown phrasing, using direct")
		}
		p.Phrasing = types.PhrasingDirect
	}

	return p, nil
}

func normalizeScenario(sc types.ScenarioDefinition) (types.ScenarioDefinition, error) {
	if sc.Name == "" {
		return sc, &ConfigError{Reason: "scenario without a name"}
	}
	if len(sc.UserTurns) == 0 {
		return sc, &ConfigError{Reason: fmt.Sprintf("scenario %q has no conversation turns", sc.Name)}
	}
	switch types.ScenarioCategory(strings.ToLower(string(sc.Category))) {
	case types.CategoryPositive, types.CategoryEdge, types.CategoryBoundary:
		sc.Category = types.ScenarioCategory(strings.ToLower(string(sc.Category)))
	default:
		return sc, &ConfigError{Reason: fmt.Sprintf("scenario %q has unknown category %q", sc.Name, sc.Category)}
	}
	return sc, nil
}

package testutil

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule sources: what part of the request a rule is matched against.
const (
	SourcePrompt     = "prompt"
	SourceToolResult = "tool_result"
)

// Scenario scripts the mock LLM: each request is answered by the
// highest-priority rule matching its latest input.
type Scenario struct {
	Settings Settings `yaml:"settings"`
	Defaults Defaults `yaml:"defaults"`
	Rules    []Rule   `yaml:"rules"`
}

// Settings configures server behaviour.
type Settings struct {
	ChunkDelayMS int `yaml:"chunk_delay_ms"` // delay between streamed chunks
}

// Defaults defines fallback behaviour.
type Defaults struct {
	Fallback string `yaml:"fallback"` // reply when no rule matches
}

// Rule maps a matching input to a reply.
type Rule struct {
	Name string      `yaml:"name"`
	On   string      `yaml:"on"` // prompt (default) or tool_result
	When MatchConfig `yaml:"when"`

	Response  string           `yaml:"response"`
	ToolCalls []ToolCallConfig `yaml:"tool_calls"`
	Priority  int              `yaml:"priority"`
}

// MatchConfig defines how input is matched. The first non-empty field wins.
type MatchConfig struct {
	Exact       string   `yaml:"exact"`
	Contains    string   `yaml:"contains"`
	ContainsAll []string `yaml:"contains_all"`
	ContainsAny []string `yaml:"contains_any"`
	Regex       string   `yaml:"regex"`
}

// ToolCallConfig is one tool call the reply carries.
type ToolCallConfig struct {
	Tool      string            `yaml:"tool"`
	Arguments map[string]string `yaml:"arguments"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario and checks its rules.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	for i := range s.Rules {
		r := &s.Rules[i]
		if r.On == "" {
			r.On = SourcePrompt
		}
		if r.On != SourcePrompt && r.On != SourceToolResult {
			return nil, fmt.Errorf("rule %d (%s): unknown source %q", i, r.Name, r.On)
		}
		if r.When.Regex != "" {
			if _, err := regexp.Compile(r.When.Regex); err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
			}
		}
	}
	return &s, nil
}

// Matches checks if text matches.
func (m *MatchConfig) Matches(text string) bool {
	lower := strings.ToLower(text)

	switch {
	case m.Exact != "":
		return strings.EqualFold(strings.TrimSpace(text), m.Exact)
	case m.Contains != "":
		return strings.Contains(lower, strings.ToLower(m.Contains))
	case len(m.ContainsAll) > 0:
		for _, s := range m.ContainsAll {
			if !strings.Contains(lower, strings.ToLower(s)) {
				return false
			}
		}
		return true
	case len(m.ContainsAny) > 0:
		for _, s := range m.ContainsAny {
			if strings.Contains(lower, strings.ToLower(s)) {
				return true
			}
		}
		return false
	case m.Regex != "":
		return regexp.MustCompile(m.Regex).MatchString(text)
	}
	return false
}

// FindRule returns the highest-priority rule for input from source, or nil.
// Ties go to the rule listed first.
func (s *Scenario) FindRule(source, text string) *Rule {
	var best *Rule
	for i := range s.Rules {
		r := &s.Rules[i]
		if r.On != source || !r.When.Matches(text) {
			continue
		}
		if best == nil || r.Priority > best.Priority {
			best = r
		}
	}
	return best
}

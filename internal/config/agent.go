package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/podharness/internal/podfs"
	"github.com/fyrsmithlabs/podharness/internal/schema"
)

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

// envVarPattern matches ${VAR_NAME} placeholders in agent configs.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// EnvVarError reports a ${VAR} placeholder referencing an undefined
// environment variable. This is a fatal setup error, never retried.
type EnvVarError struct {
	Name string
}

// Error implements the error interface.
func (e *EnvVarError) Error() string {
	return fmt.Sprintf("environment variable %q is not defined", e.Name)
}

// AgentLoader loads JSON supervisor/worker configuration files with
// ${ENV_VAR} substitution and optional schema validation.
type AgentLoader struct {
	store  *podfs.Store
	lookup func(string) (string, bool)
}

// NewAgentLoader creates a loader. A nil lookup defaults to the
// process environment; tests inject a fake.
func NewAgentLoader(store *podfs.Store, lookup func(string) (string, bool)) *AgentLoader {
	if store == nil {
		store = podfs.NewStore()
	}
	if lookup == nil {
		lookup = lookupEnv
	}
	return &AgentLoader{store: store, lookup: lookup}
}

// Load reads a JSON agent config, substitutes ${ENV_VAR} placeholders,
// and validates against s when non-nil.
func (l *AgentLoader) Load(path string, s *schema.Schema) (map[string]any, error) {
	doc, err := l.store.ReadDocument(path)
	if err != nil {
		return nil, err
	}

	substituted, err := l.substitute(doc)
	if err != nil {
		return nil, err
	}
	doc = substituted.(map[string]any)

	if s != nil {
		if ok, problems := schema.Validate(doc, s); !ok {
			return nil, schema.NewValidationError("config", problems...)
		}
	}
	return doc, nil
}

// LoadSupervisorConfig loads configs/supervisor_<pod>.json.
func (l *AgentLoader) LoadSupervisorConfig(podID string) (map[string]any, error) {
	return l.Load(fmt.Sprintf("configs/supervisor_%s.json", podID), nil)
}

// LoadWorkerConfig loads configs/worker_<pod>_<worker>.json.
func (l *AgentLoader) LoadWorkerConfig(podID, workerID string) (map[string]any, error) {
	return l.Load(fmt.Sprintf("configs/worker_%s_%s.json", podID, workerID), nil)
}

// substitute walks the decoded document and expands placeholders in
// every string value.
func (l *AgentLoader) substitute(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			expanded, err := l.substitute(item)
			if err != nil {
				return nil, err
			}
			out[key] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := l.substitute(item)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case string:
		return l.expandString(v)
	default:
		return value, nil
	}
}

func (l *AgentLoader) expandString(s string) (string, error) {
	matches := envVarPattern.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		name := m[1]
		val, ok := l.lookup(name)
		if !ok {
			return "", &EnvVarError{Name: name}
		}
		s = strings.ReplaceAll(s, "${"+name+"}", val)
	}
	return s, nil
}

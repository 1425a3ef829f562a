// Package agent selects and runs the configured LLM provider for each agent
// role in the audit service.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"forensic_audit/pkg/core/llm"
)

// Agent types with their own provider override slot.
const (
	AgentExtractor = "extractor"
)

// FallbackProvider is used when neither the agent nor the global setting
// names a registered provider.
const FallbackProvider = "local"

type Config struct {
	ActiveProvider string                    `yaml:"active_provider"`
	Agents         map[string]AgentConfig    `yaml:"agents"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Description string `yaml:"description"`
}

// ProviderConfig declares or overrides one provider. Kind is "gemini",
// "gemini_legacy" or "chat" (any OpenAI-compatible server).
type ProviderConfig struct {
	Kind      string `yaml:"kind"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	log       *zap.Logger
}

func NewManager(config Config, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		config: config,
		providers: map[string]llm.Provider{
			"gemini":        &llm.GeminiProvider{},
			"gemini_legacy": &llm.GeminiLegacyProvider{},
			"openai":        llm.NewChatCompletionProvider("openai", "", "", ""),
			"deepseek":      llm.NewChatCompletionProvider("deepseek", "", "", ""),
			"qwen":          llm.NewChatCompletionProvider("qwen", "", "", ""),
			"local":         llm.NewChatCompletionProvider("local", "", "", ""),
		},
		log: log.Named("agent"),
	}
	for name, pc := range config.Providers {
		p, err := buildProvider(name, pc)
		if err != nil {
			return nil, err
		}
		m.providers[name] = p
	}
	if m.config.ActiveProvider != "" {
		if _, ok := m.providers[m.config.ActiveProvider]; !ok {
			return nil, fmt.Errorf("active provider %q not found", m.config.ActiveProvider)
		}
	}
	return m, nil
}

func buildProvider(name string, pc ProviderConfig) (llm.Provider, error) {
	switch pc.Kind {
	case "gemini":
		return &llm.GeminiProvider{Model: pc.Model, APIKeyEnv: pc.APIKeyEnv}, nil
	case "gemini_legacy":
		return &llm.GeminiLegacyProvider{Model: pc.Model, APIKeyEnv: pc.APIKeyEnv}, nil
	case "chat", "":
		return llm.NewChatCompletionProvider(name, pc.BaseURL, pc.Model, pc.APIKeyEnv), nil
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", name, pc.Kind)
	}
}

// Register adds or replaces a provider instance.
func (m *Manager) Register(name string, p llm.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// GetProvider resolves the provider for an agent: agent override, then the
// global active provider, then FallbackProvider.
func (m *Manager) GetProvider(agentType string) llm.Provider {
	_, p := m.resolve(agentType)
	return p
}

// ProviderNameFor reports which provider GetProvider would return.
func (m *Manager) ProviderNameFor(agentType string) string {
	name, _ := m.resolve(agentType)
	return name
}

func (m *Manager) resolve(agentType string) (string, llm.Provider) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return agentConfig.Provider, p
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return m.config.ActiveProvider, p
	}
	return FallbackProvider, m.providers[FallbackProvider]
}

// GetProviderByName retrieves a provider instance by its specific name (e.g. "deepseek", "gemini")
func (m *Manager) GetProviderByName(name string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		m.log.Debug("provider not found", zap.String("provider", name))
		return nil
	}
	return p
}

// ExecutePrompt handles instruction adaptation before sending to the model
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	name, provider := m.resolve(agentType)
	if provider == nil {
		return "", fmt.Errorf("no provider available for agent %q", agentType)
	}
	m.log.Debug("executing prompt",
		zap.String("agent", agentType),
		zap.String("provider", name),
		zap.Int("prompt_chars", len(rawPrompt)))

	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, options)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.log.Info("global provider set", zap.String("provider", newProvider))
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.ActiveProvider == "" {
		return FallbackProvider
	}
	return m.config.ActiveProvider
}

// ListProviders returns the registered provider names, sorted.
func (m *Manager) ListProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/pkg/types"
)

// Registry manages all configured provider instances, keyed by instance
// ID (the providerInstanceId referenced from LayerConfig).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider instance to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider instance by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all registered provider instances.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider instance.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, m := range provider.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns every model across every registered provider instance,
// ordered by a rough quality/priority heuristic.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})
	return models
}

// DefaultModel picks a sensible default when a session's config does not
// pin providerInstanceId/modelId.
func (r *Registry) DefaultModel() (*types.Model, error) {
	if m, err := r.GetModel("anthropic", "claude-sonnet-4-20250514"); err == nil {
		return m, nil
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString parses "providerInstanceId/modelId" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	default:
		return 50
	}
}

// InstanceKind names which concrete provider backs an InstanceConfig.
type InstanceKind string

const (
	KindAnthropic InstanceKind = "anthropic"
	KindOpenAI    InstanceKind = "openai"
)

// InstanceConfig describes one provider instance to wire up, keyed by ID
// (the providerInstanceId a LayerConfig refers to).
type InstanceConfig struct {
	ID      string
	Kind    InstanceKind
	APIKey  string
	BaseURL string
	Model   string

	UseBedrock bool
	Region     string
	Profile    string

	UseAzure   bool
	APIVersion string
}

// InitializeProviders builds a Registry from explicit instance configs,
// then auto-registers "anthropic" and "openai" instances from ANTHROPIC_KEY
// and OPENAI_API_KEY when not already configured by name.
func InitializeProviders(ctx context.Context, instances []InstanceConfig) (*Registry, error) {
	registry := NewRegistry()
	configured := make(map[string]bool, len(instances))

	for _, inst := range instances {
		configured[inst.ID] = true

		var p Provider
		var err error

		switch inst.Kind {
		case KindAnthropic:
			p, err = NewAnthropicProvider(ctx, &AnthropicConfig{
				ID: inst.ID, APIKey: inst.APIKey, BaseURL: inst.BaseURL, Model: inst.Model,
				UseBedrock: inst.UseBedrock, Region: inst.Region, Profile: inst.Profile,
			})
		case KindOpenAI:
			p, err = NewOpenAIProvider(ctx, &OpenAIConfig{
				ID: inst.ID, APIKey: inst.APIKey, BaseURL: inst.BaseURL, Model: inst.Model,
				UseAzure: inst.UseAzure, APIVersion: inst.APIVersion,
			})
		default:
			err = fmt.Errorf("unknown provider kind %q for instance %q", inst.Kind, inst.ID)
		}

		if err != nil {
			log.Warn().Err(err).Str("instance", inst.ID).Msg("skipping provider instance")
			continue
		}
		registry.Register(p)
	}

	if !configured["anthropic"] {
		if apiKey := firstNonEmpty(os.Getenv("ANTHROPIC_KEY"), os.Getenv("ANTHROPIC_API_KEY")); apiKey != "" {
			p, err := NewAnthropicProvider(ctx, &AnthropicConfig{ID: "anthropic", APIKey: apiKey})
			if err != nil {
				log.Warn().Err(err).Msg("failed to auto-register anthropic provider")
			} else {
				registry.Register(p)
				log.Info().Msg("auto-registered anthropic provider from ANTHROPIC_KEY")
			}
		}
	}

	if !configured["openai"] {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			p, err := NewOpenAIProvider(ctx, &OpenAIConfig{ID: "openai", APIKey: apiKey})
			if err != nil {
				log.Warn().Err(err).Msg("failed to auto-register openai provider")
			} else {
				registry.Register(p)
				log.Info().Msg("auto-registered openai provider from OPENAI_API_KEY")
			}
		}
	}

	return registry, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

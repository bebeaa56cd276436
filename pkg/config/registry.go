package config

import (
	"fmt"

	"github.com/textloom/loom/pkg/providers"
)

// Registry builds the generation backend registry from the configured
// backends. Workflows select backends by the names used here.
func (c *Config) Registry() (*providers.Registry, error) {
	r := providers.NewRegistry(c.DefaultBackend)
	for name, b := range c.Backends {
		switch b.Kind {
		case "anthropic":
			g := providers.NewAnthropicGenerator(b.APIKey, b.Model)
			if b.BaseURL != "" {
				g.BaseURL = b.BaseURL
			}
			r.Register(name, g)
		case "openai":
			r.Register(name, providers.NewOpenAIGenerator(b.APIKey, b.Model, b.BaseURL))
		default:
			return nil, fmt.Errorf("backend %q: unknown kind %q", name, b.Kind)
		}
	}
	return r, nil
}

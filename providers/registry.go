package providers

import (
	"sync"
)

// Registry manages provider constructors. It is safe for concurrent use.
type Registry struct {
	constructors map[string]Constructor
	mutex        sync.RWMutex
}

// NewRegistry creates a registry with the requested providers registered.
// With no arguments, all known providers are registered.
func NewRegistry(names ...string) *Registry {
	registry := &Registry{
		constructors: make(map[string]Constructor),
	}

	known := knownProviders()
	if len(names) == 0 {
		for name, constructor := range known {
			registry.constructors[name] = constructor
		}
	} else {
		for _, name := range names {
			if constructor, ok := known[name]; ok {
				registry.constructors[name] = constructor
			}
		}
	}

	return registry
}

func knownProviders() map[string]Constructor {
	return map[string]Constructor{
		"openai": func(apiKey, model string) Provider {
			return NewOpenAIProvider(apiKey, model)
		},
		"anthropic": func(apiKey, model string) Provider {
			return NewAnthropicProvider(apiKey, model)
		},
	}
}

// Register adds a provider constructor under the given name.
func (r *Registry) Register(name string, constructor Constructor) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.constructors[name] = constructor
}

// Get creates a provider instance for the named backend. Unknown names fail
// with an UnsupportedProviderError carrying the offending value.
func (r *Registry) Get(name, apiKey, model string) (Provider, error) {
	r.mutex.RLock()
	constructor, exists := r.constructors[name]
	r.mutex.RUnlock()

	if !exists {
		return nil, &UnsupportedProviderError{Provider: name}
	}

	return constructor(apiKey, model), nil
}

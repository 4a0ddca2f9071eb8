// Package extractor holds the provider registry and shared helpers for the
// extraction backends. Each provider lives in its own subpackage and
// registers itself from init().
package extractor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"docbench/internal/config"
	"docbench/internal/port"
)

// Deps are collaborators a provider may need besides its own config.
type Deps struct {
	// Restructurer is the text-to-schema stage used by OCR-style backends.
	Restructurer port.Restructurer
	Logger       zerolog.Logger
}

// ProviderFactory creates an Extractor from a backend config.
type ProviderFactory func(cfg *config.BackendConfig, deps Deps) (port.Extractor, error)

var (
	mu        sync.RWMutex
	providers = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates an Extractor from a backend config using the registered factory.
func New(cfg *config.BackendConfig, deps Deps) (port.Extractor, error) {
	mu.RLock()
	factory, ok := providers[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}
	return factory(cfg, deps)
}

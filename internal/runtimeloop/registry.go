package runtimeloop

import (
	"fmt"

	"github.com/tiger/adaptive-intersection-controller/internal/provider"
	"github.com/tiger/adaptive-intersection-controller/internal/provider/mock"
)

// ProviderFactory builds a fresh, uninitialized Provider instance.
type ProviderFactory func() provider.Provider

// registry maps a configured provider_type string to its factory. Only
// the mock backend ships in this module; an "external" entry is
// registered by whatever binary links in a real detection backend
// (see RegisterProvider), exactly the way the teacher's provider
// bootstrap lets transports register in from their own init().
var registry = map[string]ProviderFactory{
	"mock": func() provider.Provider { return mock.New() },
}

// RegisterProvider adds or replaces a provider factory under name. Call
// this from an init() in a package that wires in a real detection
// backend (e.g. one built on a camera SDK or an inference runtime) so
// config.VisionConfig.ProviderType can select it without this package
// importing that backend directly.
func RegisterProvider(name string, factory ProviderFactory) {
	registry[name] = factory
}

// NewProvider builds the provider registered under name, or an error if
// nothing is registered there.
func NewProvider(name string) (provider.Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q", name)
	}
	return factory(), nil
}

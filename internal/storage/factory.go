// factory.go maps backend names (local, s3, azure, gcs) to constructor
// functions and dispatches NewStorage calls.
package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/movie-api/moviecheck/internal/config"
)

// FactoryFunc creates a storage backend from the artifacts configuration
type FactoryFunc func(*config.ArtifactsConfig) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// Registered returns the names of all registered backends, sorted
func Registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStorage creates the backend selected by cfg.Backend
func NewStorage(cfg *config.ArtifactsConfig) (Storage, error) {
	factory, ok := factories[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (registered: %s)", cfg.Backend, strings.Join(Registered(), ", "))
	}

	return factory(cfg)
}

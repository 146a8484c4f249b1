package finch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/finchkit/finch/config"
	"github.com/finchkit/finch/core"
)

// ClassifierFactory materializes one classifier slot from runtime settings.
// The provider argument is nil when no generative backend is configured;
// factories that require one return (nil, nil) to skip the slot.
type ClassifierFactory func(settings config.Settings, provider core.Provider) (core.Classifier, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ClassifierFactory)
)

// RegisterClassifier registers a factory under a stable id. The built-in
// classifiers self-register; callers may add their own before NewAgent.
//
// Panics if the id is already taken.
func RegisterClassifier(id string, factory ClassifierFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("finch: classifier %q already registered", id))
	}
	registry[id] = factory
}

// ClassifierIDs returns the registered ids in sorted order.
func ClassifierIDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func lookupClassifier(id string) (ClassifierFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[id]
	return factory, ok
}

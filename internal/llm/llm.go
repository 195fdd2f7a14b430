// Package llm defines text generation providers and a registry to select them by name.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// ErrEmptyPrompt is returned when a request carries no prompt text
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// Request is a single-turn generation request. A nil Temperature leaves the
// provider default in place; zero asks for deterministic sampling.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Generator produces text from a prompt
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Registry maps provider names to generators
type Registry struct {
	mu          sync.RWMutex
	generators  map[string]Generator
	defaultName string
}

// NewRegistry creates an empty registry. defaultName is used when Get is
// called with an empty name.
func NewRegistry(defaultName string) *Registry {
	return &Registry{generators: map[string]Generator{}, defaultName: defaultName}
}

// Register adds or replaces a generator under its own name
func (r *Registry) Register(g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[g.Name()] = g
}

// Get returns the named generator, or the default one for an empty name
func (r *Registry) Get(name string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultName
	}
	g, ok := r.generators[name]
	if !ok {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound,
			fmt.Sprintf("provider %q not registered", name), domain.ErrProviderNotFound)
	}
	return g, nil
}

// Names lists registered providers in alphabetical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for n := range r.generators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default returns the provider used when none is requested
func (r *Registry) Default() string {
	return r.defaultName
}

// TemplateProvider names the generator that is always registered.
const TemplateProvider = "template"

// TemplateGenerator never produces text, so callers fall back to their
// template letter.
type TemplateGenerator struct{}

func (TemplateGenerator) Name() string { return TemplateProvider }

func (TemplateGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return "", ctx.Err()
}

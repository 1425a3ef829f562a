package prompt

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrPromptNotFound is returned for unknown prompt or schema ids.
var ErrPromptNotFound = errors.New("prompt not found")

// Registry holds prompts and response schemas by ID. It is safe for
// concurrent use.
type Registry struct {
	prompts map[string]*PromptTemplate
	schemas map[string]*ResponseSchema
	mu      sync.RWMutex
}

var globalRegistry *Registry
var once sync.Once

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		prompts: make(map[string]*PromptTemplate),
		schemas: make(map[string]*ResponseSchema),
	}
}

// Get returns the global registry singleton, seeded with the built-in prompts.
func Get() *Registry {
	once.Do(func() {
		globalRegistry = NewRegistry()
		RegisterBuiltins(globalRegistry)
	})
	return globalRegistry
}

// Register adds or replaces a prompt.
func (r *Registry) Register(pt *PromptTemplate) error {
	if err := pt.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prompts[pt.ID] = pt
	return nil
}

// registerIfAbsent keeps a prompt loaded from disk over a built-in one.
func (r *Registry) registerIfAbsent(pt *PromptTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prompts[pt.ID]; !ok {
		r.prompts[pt.ID] = pt
	}
}

func (r *Registry) registerSchemaIfAbsent(s *ResponseSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[s.ID]; !ok {
		r.schemas[s.ID] = s
	}
}

// RegisterSchema adds or replaces a response schema.
func (r *Registry) RegisterSchema(schema *ResponseSchema) error {
	if schema.ID == "" {
		return fmt.Errorf("schema ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas[schema.ID] = schema
	return nil
}

// GetPrompt returns the prompt with the given ID.
func (r *Registry) GetPrompt(id string) (*PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.prompts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, id)
}

// GetSchema returns the response schema with the given ID.
func (r *Registry) GetSchema(id string) (*ResponseSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.schemas[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: schema %s", ErrPromptNotFound, id)
}

// ListPrompts returns all registered prompt IDs, sorted.
func (r *Registry) ListPrompts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered prompts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}

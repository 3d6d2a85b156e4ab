// Package registry holds the named tools, URI-keyed resources, URI-template
// resources, and named prompts a server exposes, each with an optional
// per-component authorization predicate. Registries are populated at
// construction time and treated as read-only for the rest of the process's
// life; lookups take a shared read lock and the build-time Add* calls take
// the exclusive lock.
package registry

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by a lookup for a name or URI that was never
// registered.
var ErrNotFound = errors.New("registry: not found")

// Registry holds every callable component a server exposes.
type Registry struct {
	mu sync.RWMutex

	tools        []Tool
	toolIndex    map[string]int
	resources    []Resource
	resourceIdx  map[string]int
	templates    []ResourceTemplate
	templateIdx  map[string]int
	prompts      []Prompt
	promptIdx    map[string]int
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		toolIndex:   map[string]int{},
		resourceIdx: map[string]int{},
		templateIdx: map[string]int{},
		promptIdx:   map[string]int{},
	}
}

// AddTool registers t, replacing any existing tool of the same name so the
// operation is idempotent under repeated identical registration.
func (r *Registry) AddTool(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.toolIndex[t.Descriptor.Name]; ok {
		r.tools[i] = t
		return
	}
	r.toolIndex[t.Descriptor.Name] = len(r.tools)
	r.tools = append(r.tools, t)
}

// AddResource registers res, replacing any existing resource of the same
// URI.
func (r *Registry) AddResource(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.resourceIdx[res.Descriptor.URI]; ok {
		r.resources[i] = res
		return
	}
	r.resourceIdx[res.Descriptor.URI] = len(r.resources)
	r.resources = append(r.resources, res)
}

// AddResourceTemplate registers tpl, replacing any existing template of the
// same URI pattern. Templates are matched in registration order, so
// replacement preserves the original position.
func (r *Registry) AddResourceTemplate(tpl ResourceTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.templateIdx[tpl.Descriptor.URITemplate]; ok {
		r.templates[i] = tpl
		return
	}
	r.templateIdx[tpl.Descriptor.URITemplate] = len(r.templates)
	r.templates = append(r.templates, tpl)
}

// AddPrompt registers p, replacing any existing prompt of the same name.
func (r *Registry) AddPrompt(p Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.promptIdx[p.Descriptor.Name]; ok {
		r.prompts[i] = p
		return
	}
	r.promptIdx[p.Descriptor.Name] = len(r.prompts)
	r.prompts = append(r.prompts, p)
}

// Tools returns every registered tool, in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Resources returns every registered exact-URI resource, in registration
// order.
func (r *Registry) Resources() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Resource, len(r.resources))
	copy(out, r.resources)
	return out
}

// ResourceTemplates returns every registered resource template, in
// registration order.
func (r *Registry) ResourceTemplates() []ResourceTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceTemplate, len(r.templates))
	copy(out, r.templates)
	return out
}

// Prompts returns every registered prompt, in registration order.
func (r *Registry) Prompts() []Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Prompt, len(r.prompts))
	copy(out, r.prompts)
	return out
}

// GetTool looks up a tool by exact name.
func (r *Registry) GetTool(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.toolIndex[name]
	if !ok {
		return Tool{}, ErrNotFound
	}
	return r.tools[i], nil
}

// GetResource looks up a resource by exact URI.
func (r *Registry) GetResource(uri string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.resourceIdx[uri]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return r.resources[i], nil
}

// GetPrompt looks up a prompt by exact name.
func (r *Registry) GetPrompt(name string) (Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.promptIdx[name]
	if !ok {
		return Prompt{}, ErrNotFound
	}
	return r.prompts[i], nil
}

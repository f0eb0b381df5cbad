package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownKind = errors.New("unknown entity kind")
	ErrKindType    = errors.New("entity kind loads a different type")
)

// Loader loads the entities of one kind by id.
type Loader func(ctx context.Context, ids []uint) ([]any, error)

// Registry maps entity kinds, as stored in taggings.tagged_type, to loaders.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

func (r *Registry) Register(kind string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[kind] = loader
}

// RegisterKind registers a typed loader.
func RegisterKind[T any](r *Registry, kind string, load func(ctx context.Context, ids []uint) ([]T, error)) {
	r.Register(kind, func(ctx context.Context, ids []uint) ([]any, error) {
		items, err := load(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, nil
	})
}

func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[kind]
	return ok
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.loaders))
	for k := range r.loaders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) Load(ctx context.Context, kind string, ids []uint) ([]any, error) {
	r.mu.RLock()
	loader, ok := r.loaders[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if len(ids) == 0 {
		return []any{}, nil
	}
	return loader(ctx, ids)
}

// RelatedEntitiesOfType returns the entities of kind tagged with tagID as T.
func RelatedEntitiesOfType[T any](ctx context.Context, s TagService, tagID uint, kind string) ([]T, error) {
	items, err := s.RelatedEntities(ctx, tagID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, ok := item.(T)
		if !ok {
			var want T
			return nil, fmt.Errorf("%w: %s loads %T, not %T", ErrKindType, kind, item, want)
		}
		out = append(out, v)
	}
	return out, nil
}

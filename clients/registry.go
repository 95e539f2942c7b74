package clients

import (
	"fmt"
	"sort"
	"sync"
)

var _ Repo = (*Registry)(nil)

// Registry is an in-memory Repo
type Registry struct {
	registrations map[string]*Registration
	lock          sync.RWMutex
}

// NewRegistry validates and stores the given registrations
func NewRegistry(registrations ...*Registration) (*Registry, error) {
	r := &Registry{
		registrations: make(map[string]*Registration),
	}
	for _, reg := range registrations {
		if err := r.Add(reg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates and stores a registration. Ids must be unique.
func (r *Registry) Add(reg *Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.registrations[reg.ID]; ok {
		return fmt.Errorf("[Registry.Add] duplicate registration id %q", reg.ID)
	}
	r.registrations[reg.ID] = reg.Clone()
	return nil
}

func (r *Registry) Find(id string) (*Registration, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	reg, ok := r.registrations[id]
	if !ok {
		return nil, false
	}
	return reg.Clone(), true
}

// List returns copies sorted by id
func (r *Registry) List() []*Registration {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*Registration, 0, len(r.registrations))
	for _, v := range r.registrations {
		list = append(list, v.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

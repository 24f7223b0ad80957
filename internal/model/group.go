package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

// Group is an ordered set of tags sampled on a common interval.
type Group struct {
	Name     string
	Interval time.Duration

	mu          sync.RWMutex
	tags        map[string]*Tag
	order       []string
	changedAt   int64 // monotonic nanosecond counter, strictly increasing on structural edit
}

// NewGroup constructs an empty group after validating name and interval.
func NewGroup(name string, interval time.Duration) (*Group, error) {
	g := &Group{Name: name, Interval: interval, tags: make(map[string]*Tag)}
	if err := g.validateShape(); err != nil {
		return nil, err
	}
	g.touch()
	return g, nil
}

func (g *Group) validateShape() error {
	if g.Name == "" {
		return gwerrors.GroupParamInvalid("group name is required")
	}
	if len(g.Name) > MaxGroupNameLen {
		return gwerrors.NameTooLong("group", g.Name, MaxGroupNameLen)
	}
	if g.Interval < MinGroupInterval {
		return gwerrors.GroupParamInvalid(fmt.Sprintf("interval must be >= %s", MinGroupInterval))
	}
	return nil
}

// touch bumps the change-timestamp. Called on every structural edit:
// add/update/delete tag, or interval change.
func (g *Group) touch() {
	now := time.Now().UnixNano()
	if now <= g.changedAt {
		now = g.changedAt + 1
	}
	g.changedAt = now
}

// ChangedAt returns the monotonic change-timestamp used by the scheduler to
// detect when it must re-sync the plugin's view of this group.
func (g *Group) ChangedAt() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.changedAt
}

// SetInterval updates the sampling interval, bumping the change-timestamp.
func (g *Group) SetInterval(interval time.Duration) error {
	if interval < MinGroupInterval {
		return gwerrors.GroupParamInvalid(fmt.Sprintf("interval must be >= %s", MinGroupInterval))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Interval = interval
	g.touch()
	return nil
}

// AddTag inserts a new tag. Fails if a tag with the same name already
// exists in this group.
func (g *Group) AddTag(tag *Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	name := tag.NormalizedName()

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tags[name]; exists {
		return gwerrors.AlreadyExists("tag", name)
	}
	g.tags[name] = tag.Clone()
	g.order = append(g.order, name)
	g.touch()
	return nil
}

// UpdateTag replaces an existing tag's definition in place. The tag's name
// cannot change via update (rename is modeled as delete+add, matching the
// original's tag update semantics).
func (g *Group) UpdateTag(tag *Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	name := tag.NormalizedName()

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tags[name]; !exists {
		return gwerrors.NotFound("tag", name)
	}
	g.tags[name] = tag.Clone()
	g.touch()
	return nil
}

// DeleteTag removes a tag by name.
func (g *Group) DeleteTag(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tags[name]; !exists {
		return gwerrors.NotFound("tag", name)
	}
	delete(g.tags, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.touch()
	return nil
}

// GetTag returns a copy of a tag by name.
func (g *Group) GetTag(name string) (*Tag, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	tag, ok := g.tags[name]
	if !ok {
		return nil, false
	}
	return tag.Clone(), true
}

// Tags returns a snapshot slice of all tags, in insertion order.
func (g *Group) Tags() []*Tag {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Tag, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.tags[name].Clone())
	}
	return out
}

// TagCount returns the number of tags currently in the group.
func (g *Group) TagCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

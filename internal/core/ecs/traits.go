package ecs

// ParentLink is embedded in components that want to know their entity's
// parent. The registry keeps it in sync with the parent graph.
type ParentLink struct {
	parent Entity
}

// ParentEntity returns the linked parent, or InvalidEntity.
func (l *ParentLink) ParentEntity() Entity {
	if l.parent == 0 {
		return InvalidEntity
	}
	return l.parent
}

func (l *ParentLink) setParentEntity(e Entity) {
	if e == InvalidEntity {
		e = 0
	}
	l.parent = e
}

// ChildLinks is embedded in components that want the list of their entity's
// children. The registry keeps it in sync with the parent graph.
type ChildLinks struct {
	children []Entity
}

// ChildEntities returns the linked children. The slice must not be modified.
func (l *ChildLinks) ChildEntities() []Entity { return l.children }

// setChildEntities takes ownership of children.
func (l *ChildLinks) setChildEntities(children []Entity) {
	l.children = children
}

// IgnoreDummies makes the links of a component skip Dummy entities: the
// parent link resolves to the nearest non-dummy ancestor and the child links
// descend through dummy children.
type IgnoreDummies struct{}

func (IgnoreDummies) ignoreDummies() {}

type parentLinker interface {
	ParentEntity() Entity
	setParentEntity(Entity)
}

type childLinker interface {
	ChildEntities() []Entity
	setChildEntities([]Entity)
}

type dummyIgnorer interface {
	ignoreDummies()
}

type traitFlags uint8

const (
	traitParent traitFlags = 1 << iota
	traitChildren
	traitIgnoreDummies
)

func traitsOf[T any]() traitFlags {
	var f traitFlags
	p := any((*T)(nil))
	if _, ok := p.(parentLinker); ok {
		f |= traitParent
	}
	if _, ok := p.(childLinker); ok {
		f |= traitChildren
	}
	if _, ok := p.(dummyIgnorer); ok {
		f |= traitIgnoreDummies
	}
	return f
}

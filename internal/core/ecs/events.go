package ecs

// Lifecycle events are delivered through RegistryOptions.OnEvent while the
// registry still holds its locks, so handlers must not call back into the
// registry. The engine forwards them onto the event bus.

type EntityCreated struct {
	Entity Entity
}

type EntityDestroyed struct {
	Entity Entity
}

type ComponentAdded struct {
	Entity    Entity
	Component string
}

type ComponentRemoved struct {
	Entity    Entity
	Component string
}

type ParentSet struct {
	Parent Entity
	Child  Entity
}

type ParentRemoved struct {
	Parent Entity
	Child  Entity
}

type DependencyAdded struct {
	Parent Entity
	Child  Entity
}

type DependencyRemoved struct {
	Parent Entity
	Child  Entity
}

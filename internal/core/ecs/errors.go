package ecs

import "errors"

var (
	// ErrEntityLimit is returned when the registry has handed out MaxEntities live ids.
	ErrEntityLimit = errors.New("ecs: entity limit reached")
	// ErrInvalidWorld is returned for world indices above MaxWorldIndex.
	ErrInvalidWorld = errors.New("ecs: invalid world index")
	// ErrEntityNotFound is returned by fallible helpers given a stale or unknown entity.
	ErrEntityNotFound = errors.New("ecs: entity not found")
	// ErrComponentExists is returned by fallible helpers when the entity already has the component.
	ErrComponentExists = errors.New("ecs: component already exists")
)

package scripting

import (
	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
)

const entityTypeName = "Entity"

// installAPI registers the Entity userdata type and the global ecs table.
// Entities travel as userdata because a Lua number cannot hold all 64 bits.
func (e *Engine) installAPI() {
	L := e.vm
	mt := L.NewTypeMetatable(entityTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkEntity(L, 1).String()))
		return 1
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkEntity(L, 1) == checkEntity(L, 2)))
		return 1
	}))
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"index":   func(L *lua.LState) int { L.Push(lua.LNumber(checkEntity(L, 1).Index())); return 1 },
		"version": func(L *lua.LState) int { L.Push(lua.LNumber(checkEntity(L, 1).Version())); return 1 },
		"world":   func(L *lua.LState) int { L.Push(lua.LNumber(checkEntity(L, 1).World())); return 1 },
		"is_dummy": func(L *lua.LState) int {
			L.Push(lua.LBool(checkEntity(L, 1).HasFlag(ecs.FlagDummy)))
			return 1
		},
	}))

	api := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"create":              e.luaCreate,
		"destroy":             e.luaDestroy,
		"queue_destroy":       e.luaQueueDestroy,
		"destroy_when_unused": e.luaDestroyWhenUnused,
		"exists":              e.luaExists,
		"count":               e.luaCount,
		"set_parent":          e.luaSetParent,
		"unparent":            e.luaUnParent,
		"parent":              e.luaParent,
		"children":            e.luaChildren,
		"set_behavior":        e.luaSetBehavior,
		"add_dependency":      e.luaAddDependency,
		"remove_dependency":   e.luaRemoveDependency,
		"has_dependencies":    e.luaHasDependencies,
		"set_position":        e.luaSetPosition,
		"position":            e.luaPosition,
		"set_velocity":        e.luaSetVelocity,
		"set_name":            e.luaSetName,
		"name":                e.luaName,
		"spawn":               e.luaSpawn,
	})
	L.SetGlobal("ecs", api)
}

func pushEntity(L *lua.LState, ent ecs.Entity) {
	if ent == ecs.InvalidEntity {
		L.Push(lua.LNil)
		return
	}
	ud := L.NewUserData()
	ud.Value = ent
	L.SetMetatable(ud, L.GetTypeMetatable(entityTypeName))
	L.Push(ud)
}

func checkEntity(L *lua.LState, n int) ecs.Entity {
	ud := L.CheckUserData(n)
	ent, ok := ud.Value.(ecs.Entity)
	if !ok {
		L.ArgError(n, "entity expected")
	}
	return ent
}

// ecs.create([world [, flag, ...]]) -> entity | nil, err
func (e *Engine) luaCreate(L *lua.LState) int {
	world := L.OptInt(1, 0)
	flags := ecs.FlagNone
	for i := 2; i <= L.GetTop(); i++ {
		f, ok := ecs.ParseFlag(L.CheckString(i))
		if !ok {
			L.ArgError(i, "unknown flag")
		}
		flags |= f
	}
	if world < 0 || world > ecs.MaxWorldIndex {
		L.ArgError(1, "world out of range")
	}
	ent, err := e.reg.CreateEntity(uint8(world), flags)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	pushEntity(L, ent)
	return 1
}

func (e *Engine) luaDestroy(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.DestroyEntity(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaQueueDestroy(L *lua.LState) int {
	e.reg.QueueDestroy(checkEntity(L, 1))
	return 0
}

func (e *Engine) luaDestroyWhenUnused(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.DestroyWhenUnused(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaExists(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.EntityExists(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.reg.Count()))
	return 1
}

func (e *Engine) luaSetParent(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.SetParent(checkEntity(L, 1), checkEntity(L, 2))))
	return 1
}

func (e *Engine) luaUnParent(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.UnParent(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaParent(L *lua.LState) int {
	pushEntity(L, e.reg.Parent(checkEntity(L, 1)))
	return 1
}

// ecs.children(e) -> array of entities
func (e *Engine) luaChildren(L *lua.LState) int {
	t := L.NewTable()
	for c := range e.reg.Children(checkEntity(L, 1)) {
		pushEntity(L, c)
		t.Append(L.Get(-1))
		L.Pop(1)
	}
	L.Push(t)
	return 1
}

func (e *Engine) luaSetBehavior(L *lua.LState) int {
	ent := checkEntity(L, 1)
	b, ok := ecs.ParseParentDestructionBehavior(L.CheckString(2))
	if !ok {
		L.ArgError(2, "unknown behavior")
	}
	L.Push(lua.LBool(e.reg.SetParentDestructionBehavior(ent, b)))
	return 1
}

func (e *Engine) luaAddDependency(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.AddDependency(checkEntity(L, 1), checkEntity(L, 2))))
	return 1
}

func (e *Engine) luaRemoveDependency(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.RemoveDependency(checkEntity(L, 1), checkEntity(L, 2))))
	return 1
}

func (e *Engine) luaHasDependencies(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.HasDependencies(checkEntity(L, 1))))
	return 1
}

// ecs.set_position(e, x, y) adds a Transform2D when missing.
func (e *Engine) luaSetPosition(L *lua.LState) int {
	ent := checkEntity(L, 1)
	x, y := float32(L.CheckNumber(2)), float32(L.CheckNumber(3))
	ok := ecs.UpdateComponent(e.reg, ent, func(t *component.Transform2D) {
		t.Position = mgl32.Vec2{x, y}
	})
	if !ok {
		ok = ecs.AddComponent(e.reg, ent, component.NewTransform2D(x, y, 0)) != nil
	}
	L.Push(lua.LBool(ok))
	return 1
}

// ecs.position(e) -> x, y, global_x, global_y | nil
func (e *Engine) luaPosition(L *lua.LState) int {
	t, ok := ecs.GetComponent[component.Transform2D](e.reg, checkEntity(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(t.Position.X()))
	L.Push(lua.LNumber(t.Position.Y()))
	L.Push(lua.LNumber(t.Global.X()))
	L.Push(lua.LNumber(t.Global.Y()))
	return 4
}

// ecs.set_velocity(e, x, y [, angular]) adds a Velocity when missing.
func (e *Engine) luaSetVelocity(L *lua.LState) int {
	ent := checkEntity(L, 1)
	v := component.Velocity{
		Linear:  mgl32.Vec2{float32(L.CheckNumber(2)), float32(L.CheckNumber(3))},
		Angular: float32(L.OptNumber(4, 0)),
	}
	ok := ecs.UpdateComponent(e.reg, ent, func(c *component.Velocity) { *c = v })
	if !ok {
		ok = ecs.AddComponent(e.reg, ent, v) != nil
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (e *Engine) luaSetName(L *lua.LState) int {
	ent := checkEntity(L, 1)
	name := L.CheckString(2)
	ok := ecs.UpdateComponent(e.reg, ent, func(n *component.Name) { n.Value = name })
	if !ok {
		ok = ecs.AddComponent(e.reg, ent, component.Name{Value: name}) != nil
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (e *Engine) luaName(L *lua.LState) int {
	n, ok := ecs.GetComponent[component.Name](e.reg, checkEntity(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(n.Value))
	return 1
}

// ecs.spawn(prefab [, x, y]) -> root | nil, err
func (e *Engine) luaSpawn(L *lua.LState) int {
	name := L.CheckString(1)
	at := mgl32.Vec2{float32(L.OptNumber(2, 0)), float32(L.OptNumber(3, 0))}
	if e.prefabs == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("no prefab library loaded"))
		return 2
	}
	root, _, err := e.prefabs.Spawn(e.reg, name, at)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	pushEntity(L, root)
	return 1
}

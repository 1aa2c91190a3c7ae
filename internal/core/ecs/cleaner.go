package ecs

// Cleaner destroys an entity on Clean unless it was disarmed first. It guards
// multi-step construction:
//
//	c := ecs.NewCleaner(reg, e)
//	defer c.Clean()
//	if ecs.AddComponent(reg, e, a) == nil {
//		return err
//	}
//	c.Disarm()
type Cleaner struct {
	reg    *Registry
	entity Entity
	armed  bool
}

func NewCleaner(r *Registry, e Entity) *Cleaner {
	return &Cleaner{reg: r, entity: e, armed: true}
}

// Entity returns the guarded entity.
func (c *Cleaner) Entity() Entity { return c.entity }

// Disarm keeps the entity alive past Clean.
func (c *Cleaner) Disarm() { c.armed = false }

// Armed reports whether Clean will destroy the entity.
func (c *Cleaner) Armed() bool { return c.armed }

// Clean destroys the entity if still armed and reports whether it did. It
// opens its own transaction.
func (c *Cleaner) Clean() bool {
	if !c.armed {
		return false
	}
	c.armed = false
	return c.reg.DestroyEntity(c.entity)
}

// CleanTx is Clean for callers already holding an entity write transaction.
func (c *Cleaner) CleanTx(tx *Transaction) bool {
	if !c.armed {
		return false
	}
	c.armed = false
	return c.reg.DestroyEntityTx(tx, c.entity)
}

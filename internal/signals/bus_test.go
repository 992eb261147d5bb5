package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raidwatch/raidwatch/internal/combatlog"
)

func TestBusTypedDelivery(t *testing.T) {
	bus := NewBus()

	var all, deaths []Type
	bus.Subscribe(func(sig Signal) { all = append(all, sig.Type) })
	bus.SubscribeTyped(EntityDeath, func(sig Signal) { deaths = append(deaths, sig.Type) })

	bus.PublishAll([]Signal{
		New(CombatStarted, time.Now(), combatlog.Entity{}, combatlog.Entity{}),
		New(EntityDeath, time.Now(), combatlog.Entity{}, combatlog.Entity{}),
		New(CombatEnded, time.Now(), combatlog.Entity{}, combatlog.Entity{}),
	})

	assert.Equal(t, []Type{CombatStarted, EntityDeath, CombatEnded}, all)
	assert.Equal(t, []Type{EntityDeath}, deaths)
}

func TestBusDeliveryFollowsRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeTyped(EntityDeath, func(Signal) { order = append(order, "typed-1") })
	bus.Subscribe(func(Signal) { order = append(order, "untyped") })
	bus.SubscribeTyped(EntityDeath, func(Signal) { order = append(order, "typed-2") })

	bus.Publish(New(EntityDeath, time.Now(), combatlog.Entity{}, combatlog.Entity{}))

	assert.Equal(t, []string{"typed-1", "untyped", "typed-2"}, order)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	handle := bus.Subscribe(func(Signal) { count++ })

	bus.Publish(New(CombatStarted, time.Now(), combatlog.Entity{}, combatlog.Entity{}))
	bus.Unsubscribe(handle)
	bus.Publish(New(CombatEnded, time.Now(), combatlog.Entity{}, combatlog.Entity{}))

	assert.Equal(t, 1, count)
}

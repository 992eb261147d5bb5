package selectors

import "github.com/raidwatch/raidwatch/internal/combatlog"

// Filter names a relationship predicate over a concrete entity.
type Filter string

const (
	FilterAny                     Filter = "ANY"
	FilterLocalPlayer             Filter = "LOCAL_PLAYER"
	FilterOtherPlayers            Filter = "OTHER_PLAYERS"
	FilterAnyPlayer               Filter = "ANY_PLAYER"
	FilterAnyCompanion            Filter = "ANY_COMPANION"
	FilterAnyPlayerOrCompanion    Filter = "ANY_PLAYER_OR_COMPANION"
	FilterGroupMembers            Filter = "GROUP_MEMBERS"
	FilterGroupMembersExceptLocal Filter = "GROUP_MEMBERS_EXCEPT_LOCAL"
	FilterBoss                    Filter = "BOSS"
	FilterNpcExceptBoss           Filter = "NPC_EXCEPT_BOSS"
	FilterAnyNpc                  Filter = "ANY_NPC"
	FilterSelector                Filter = "SELECTOR"
)

// EncounterContext is the roster view needed by relationship filters.
// Implemented by the combat encounter; nil context means "no encounter",
// in which case roster-dependent filters never match.
type EncounterContext interface {
	// LocalPlayerID returns the session's local player log id, 0 if unknown.
	LocalPlayerID() int64
	// IsBossClass reports whether the class id belongs to the active boss roster.
	IsBossClass(classID int64) bool
	// IsGroupMember reports whether the player log id is in the group.
	IsGroupMember(logID int64) bool
}

// EntityMatch pairs a filter with the selector used when Filter is
// FilterSelector. The zero value matches any entity.
type EntityMatch struct {
	Filter   Filter         `yaml:"filter"`
	Selector EntitySelector `yaml:"selector"`
}

// Matches evaluates the filter against a concrete entity. Filters that need
// the boss roster or the local player deny by default when ctx is nil.
func (m EntityMatch) Matches(ent combatlog.Entity, ctx EncounterContext) bool {
	switch m.Filter {
	case FilterAny, "":
		return true

	case FilterLocalPlayer:
		return ctx != nil && ent.Kind == combatlog.KindPlayer && ent.LogID == ctx.LocalPlayerID()

	case FilterOtherPlayers:
		return ctx != nil && ent.Kind == combatlog.KindPlayer && ent.LogID != ctx.LocalPlayerID()

	case FilterAnyPlayer:
		return ent.Kind == combatlog.KindPlayer

	case FilterAnyCompanion:
		return ent.Kind == combatlog.KindCompanion

	case FilterAnyPlayerOrCompanion:
		return ent.Kind == combatlog.KindPlayer || ent.Kind == combatlog.KindCompanion

	case FilterGroupMembers:
		return ctx != nil && ent.Kind == combatlog.KindPlayer && ctx.IsGroupMember(ent.LogID)

	case FilterGroupMembersExceptLocal:
		return ctx != nil && ent.Kind == combatlog.KindPlayer &&
			ctx.IsGroupMember(ent.LogID) && ent.LogID != ctx.LocalPlayerID()

	case FilterBoss:
		return ctx != nil && ent.Kind == combatlog.KindNpc && ctx.IsBossClass(ent.ClassID)

	case FilterNpcExceptBoss:
		return ctx != nil && ent.Kind == combatlog.KindNpc && !ctx.IsBossClass(ent.ClassID)

	case FilterAnyNpc:
		return ent.Kind == combatlog.KindNpc

	case FilterSelector:
		return m.Selector.Matches(ent.ClassID, ent.Name) || m.Selector.Matches(ent.LogID, ent.Name)

	default:
		return false
	}
}

package combatlog

import (
	"strconv"
	"strings"
	"time"
)

// Parser turns raw log lines into CombatEvents. One Parser is created per
// log session; it carries no combat state, only a string intern table so
// entity and ability names repeated across millions of lines share storage.
type Parser struct {
	interned map[string]string
}

// NewParser creates a parser for a single log session.
func NewParser() *Parser {
	return &Parser{
		interned: make(map[string]string),
	}
}

// ParseLine parses one raw log line. It returns (nil, false) for anything
// that does not match the line grammar: blank lines, headers and
// forward-incompatible records are routine and never abort the stream.
func (p *Parser) ParseLine(lineNumber int, text string) (*CombatEvent, bool) {
	line := strings.TrimSpace(text)
	if line == "" || line[0] != '[' {
		return nil, false
	}

	fields, rest, ok := splitBracketFields(line, 5)
	if !ok {
		return nil, false
	}

	ts, ok := parseTimestamp(fields[0])
	if !ok {
		return nil, false
	}

	source, _, ok := p.parseEntity(fields[1])
	if !ok {
		return nil, false
	}
	target, sameAsSource, ok := p.parseEntity(fields[2])
	if !ok {
		return nil, false
	}
	if sameAsSource {
		target = source
	}

	ability, ok := p.parseAction(fields[3])
	if !ok {
		return nil, false
	}

	effect, ok := p.parseEffect(fields[4])
	if !ok {
		return nil, false
	}

	ev := &CombatEvent{
		LineNumber: lineNumber,
		Timestamp:  ts,
		Source:     source,
		Target:     target,
		Ability:    ability,
		Effect:     effect,
	}

	details, threat := splitDetails(rest)
	if ev.IsEvent(EventAreaEntered) {
		// The parenthesized payload of an AreaEntered event is the area
		// name, not a value list.
		ev.Area = p.intern(strings.TrimSpace(details))
	} else if details != "" {
		ev.Details = p.parseDetails(details, effect.Type)
	}
	ev.Details.Threat = threat

	return ev, true
}

// intern returns a shared copy of s.
func (p *Parser) intern(s string) string {
	if s == "" {
		return ""
	}
	if v, ok := p.interned[s]; ok {
		return v
	}
	p.interned[s] = s
	return s
}

// splitBracketFields extracts the first n top-level [...] fields and returns
// them with whatever trails the final bracket.
func splitBracketFields(line string, n int) ([]string, string, bool) {
	fields := make([]string, 0, n)
	rest := line
	for i := 0; i < n; i++ {
		if len(rest) == 0 || rest[0] != '[' {
			return nil, "", false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, "", false
		}
		fields = append(fields, rest[1:end])
		rest = strings.TrimLeft(rest[end+1:], " ")
	}
	return fields, rest, true
}

// parseTimestamp parses the HH:MM:SS.mmm time-of-day field. Log lines carry
// no date; the encounter duration math owns midnight rollover.
func parseTimestamp(s string) (time.Time, bool) {
	t, err := time.Parse("15:04:05.000", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// parseEntity parses a source/target field. The second return is true for
// the "[=]" shorthand meaning "same as source".
func (p *Parser) parseEntity(s string) (Entity, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Entity{}, false, true
	}
	if s == "=" {
		return Entity{}, true, true
	}

	parts := strings.Split(s, "|")
	identity := strings.TrimSpace(parts[0])

	var ent Entity
	if strings.HasPrefix(identity, "@") {
		ok := p.parsePlayerOrCompanion(identity[1:], &ent)
		if !ok {
			return Entity{}, false, false
		}
	} else {
		name, classID, rest, ok := cutBracedID(identity)
		if !ok {
			return Entity{}, false, false
		}
		logID, ok := cutColonID(rest)
		if !ok {
			return Entity{}, false, false
		}
		ent = Entity{
			LogID:   logID,
			ClassID: classID,
			Name:    p.intern(name),
			Kind:    KindNpc,
		}
	}

	// Trailing |(...)|(cur/max) segments: the last parenthesized pair of
	// numbers separated by '/' is health; position pairs use ','.
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "(") || !strings.HasSuffix(part, ")") {
			continue
		}
		inner := part[1 : len(part)-1]
		cur, max, ok := parseHealthPair(inner)
		if ok {
			ent.Health = Health{Current: cur, Max: max}
		}
	}

	return ent, false, true
}

// parsePlayerOrCompanion parses "Name#id" (player) or
// "Owner#oid/Comp Name {classId}:logId" (companion), sans the leading '@'.
func (p *Parser) parsePlayerOrCompanion(s string, ent *Entity) bool {
	owner, comp, isCompanion := strings.Cut(s, "/")

	name, idStr, ok := strings.Cut(owner, "#")
	if !ok {
		return false
	}
	ownerID, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return false
	}

	if !isCompanion {
		*ent = Entity{
			LogID: ownerID,
			Name:  p.intern(strings.TrimSpace(name)),
			Kind:  KindPlayer,
		}
		return true
	}

	compName, classID, rest, ok := cutBracedID(comp)
	if !ok {
		return false
	}
	logID, ok := cutColonID(rest)
	if !ok {
		return false
	}
	*ent = Entity{
		LogID:   logID,
		ClassID: classID,
		Name:    p.intern(compName),
		Kind:    KindCompanion,
		OwnerID: ownerID,
	}
	return true
}

// parseAction parses the ability field: empty, or "Name {id}".
func (p *Parser) parseAction(s string) (ActionRecord, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ActionRecord{}, true
	}
	name, id, _, ok := cutBracedID(s)
	if !ok {
		return ActionRecord{}, false
	}
	return ActionRecord{ID: id, Name: p.intern(name)}, true
}

// parseEffect parses "Type {typeId}: Name {id}" or "Type {typeId}".
func (p *Parser) parseEffect(s string) (EffectRecord, bool) {
	head, tail, hasName := strings.Cut(s, ":")

	typeName, typeID, _, ok := cutBracedID(head)
	if !ok {
		return EffectRecord{}, false
	}
	rec := EffectRecord{
		Type:   EffectType(typeName),
		TypeID: typeID,
	}
	switch rec.Type {
	case EffectApply, EffectRemove, EffectCharges, EffectEvent, EffectDamage, EffectHeal:
	default:
		return EffectRecord{}, false
	}

	if hasName {
		name, id, _, ok := cutBracedID(tail)
		if !ok {
			// Some damage/heal lines carry a bare result name with no id.
			rec.Name = p.intern(strings.TrimSpace(tail))
			return rec, true
		}
		rec.Name = p.intern(name)
		rec.ID = id
	}
	return rec, true
}

// splitDetails separates the trailing "(details)" and "<threat>" payloads.
func splitDetails(rest string) (string, int64) {
	rest = strings.TrimSpace(rest)
	var details string
	if strings.HasPrefix(rest, "(") {
		end := strings.LastIndexByte(rest, ')')
		if end > 0 {
			details = rest[1:end]
			rest = strings.TrimSpace(rest[end+1:])
		}
	}
	var threat int64
	if strings.HasPrefix(rest, "<") && strings.HasSuffix(rest, ">") {
		if v, err := strconv.ParseInt(rest[1:len(rest)-1], 10, 64); err == nil {
			threat = v
		}
	}
	return details, threat
}

// parseDetails parses the value list inside the parentheses, e.g.
// "6391* kinetic {id} ~6000 -1200 absorbed {id}" or "0 -parry {id}".
func (p *Parser) parseDetails(s string, effectType EffectType) DetailRecord {
	var rec DetailRecord

	tokens := strings.Fields(s)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}"):
			// ids of damage types / mitigation rolls are not used downstream

		case strings.HasPrefix(tok, "~"):
			if v, err := strconv.ParseInt(tok[1:], 10, 64); err == nil {
				rec.Effective = v
			}

		case strings.HasPrefix(tok, "-"):
			word := strings.TrimPrefix(tok, "-")
			switch DefenseType(word) {
			case DefenseParry, DefenseDodge, DefenseResist, DefenseDeflect, DefenseMiss, DefenseShield:
				rec.Defense = DefenseType(word)
			default:
				// "-1200 absorbed {id}"
				if v, err := strconv.ParseInt(word, 10, 64); err == nil {
					if i+1 < len(tokens) && tokens[i+1] == "absorbed" {
						rec.Absorbed = v
						i++
					}
				}
			}

		default:
			crit := strings.HasSuffix(tok, "*")
			num := strings.TrimSuffix(tok, "*")
			if v, err := strconv.ParseInt(num, 10, 64); err == nil {
				rec.Amount = v
				rec.Crit = rec.Crit || crit
				continue
			}
			if tok == "charges" || tok == "absorbed" {
				continue
			}
			if rec.DamageType == "" {
				rec.DamageType = p.intern(tok)
			}
		}
	}

	if effectType == EffectCharges {
		rec.Charges = rec.Amount
	}
	if rec.Effective == 0 {
		rec.Effective = rec.Amount
	}
	return rec
}

// cutBracedID splits "Name {id}tail" into (Name, id, tail).
func cutBracedID(s string) (string, int64, string, bool) {
	open := strings.IndexByte(s, '{')
	if open < 0 {
		return "", 0, "", false
	}
	end := strings.IndexByte(s[open:], '}')
	if end < 0 {
		return "", 0, "", false
	}
	end += open
	id, err := strconv.ParseInt(strings.TrimSpace(s[open+1:end]), 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	name := strings.TrimSpace(s[:open])
	tail := s[end+1:]
	return name, id, tail, true
}

// parseHealthPair parses "cur/max".
func parseHealthPair(s string) (int64, int64, bool) {
	curStr, maxStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, false
	}
	cur, err := strconv.ParseInt(strings.TrimSpace(curStr), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	max, err := strconv.ParseInt(strings.TrimSpace(maxStr), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return cur, max, true
}

// cutColonID parses ":12345" (a session-unique log id suffix).
func cutColonID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, ":") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s[1:]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

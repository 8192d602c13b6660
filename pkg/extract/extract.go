// Package extract statically collects the variable keys that rule
// expressions read and that patch effects write.
//
// Keys are coarse: only the base segment of an accessor path is kept, so
// "inventory.0.name" and "inventory[2]" both resolve to "inventory". The
// custom settlement and structure operators resolve to synthetic keys such
// as "settlement.level" that are backed by virtual variables.
package extract

import (
	"maps"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/common"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/rules"
)

// Set is a collection of distinct variable keys.
type Set map[string]struct{}

func (s Set) add(key string) {
	if key != "" {
		s[key] = struct{}{}
	}
}

// Has reports whether key is in the set.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the keys in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

const (
	SettlementPrefix = "settlement."
	StructurePrefix  = "structure."
)

// IsVirtualKey reports whether key names a built-in settlement or structure
// property rather than a persisted variable.
func IsVirtualKey(key string) bool {
	return strings.HasPrefix(key, SettlementPrefix) || strings.HasPrefix(key, StructurePrefix)
}

// ExtractReads returns every variable key expr reads.
func ExtractReads(expr rules.Expr) Set {
	reads := Set{}
	rules.Walk(expr, func(e rules.Expr) bool {
		switch n := e.(type) {
		case rules.VarRef:
			reads.add(rules.BaseSegment(n.Path))
			// The default is a fallback value, not a reference.
			return false
		case rules.SettlementOp:
			reads.add(settlementKey(n))
			return false
		case rules.StructureOp:
			reads.add(structureKey(n))
			return false
		}
		return true
	})
	return reads
}

// ExtractReadsJSON parses raw and returns the keys it reads. Invalid or
// empty input reads nothing.
func ExtractReadsJSON(raw []byte) Set {
	return ExtractReads(rules.Parse(raw))
}

// ReadsVariable reports whether raw reads key.
func ReadsVariable(raw []byte, key string) bool {
	return ExtractReadsJSON(raw).Has(key)
}

// ExtractReadsFromMultiple unions the reads of every expression.
func ExtractReadsFromMultiple(raws ...[]byte) Set {
	reads := Set{}
	for _, raw := range raws {
		maps.Copy(reads, ExtractReadsJSON(raw))
	}
	return reads
}

func settlementKey(op rules.SettlementOp) string {
	switch op.Accessor {
	case rules.AccessorLevel:
		return SettlementPrefix + "level"
	case rules.AccessorVar:
		if name, ok := rules.StringArg(op.Args, 0); ok {
			return SettlementPrefix + name
		}
	case rules.AccessorHasStructureType, rules.AccessorStructureCount:
		return SettlementPrefix + "structures.count"
	case rules.AccessorInKingdom:
		return SettlementPrefix + "kingdomId"
	case rules.AccessorAtLocation:
		return SettlementPrefix + "locationId"
	}
	return ""
}

func structureKey(op rules.StructureOp) string {
	switch op.Accessor {
	case rules.AccessorLevel:
		return StructurePrefix + "level"
	case rules.AccessorType:
		return StructurePrefix + "type"
	case rules.AccessorVar:
		if name, ok := rules.StringArg(op.Args, 0); ok {
			return StructurePrefix + name
		}
	case rules.AccessorIsOperational:
		return StructurePrefix + "operational"
	case rules.AccessorInSettlement:
		return StructurePrefix + "settlementId"
	}
	return ""
}

// ExtractWrites returns the variable keys a patch effect writes. Effects of
// any other type write nothing.
func ExtractWrites(effect common.Effect) Set {
	writes := Set{}
	if effect.EffectType != common.EffectTypePatch {
		return writes
	}
	for _, op := range rules.ParsePatch(effect.Payload) {
		switch op.Op {
		case rules.OpAdd, rules.OpReplace, rules.OpRemove, rules.OpCopy, rules.OpMove:
			writes.add(rules.PointerBase(op.Path))
		}
	}
	return writes
}

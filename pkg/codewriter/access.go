package codewriter

import (
	"fmt"
	"strings"
)

type Access int

const (
	AccessPublic Access = iota
	AccessPrivate
	AccessInternal
	AccessProtected
	AccessProtectedInternal
	AccessPrivateProtected
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessPrivate:
		return "private"
	case AccessInternal:
		return "internal"
	case AccessProtected:
		return "protected"
	case AccessProtectedInternal:
		return "protected internal"
	case AccessPrivateProtected:
		return "private protected"
	default:
		panic(fmt.Sprintf("codewriter: unknown access %d", int(a)))
	}
}

// Modifiers is a set of declaration keywords.
type Modifiers uint

const (
	ModNone     Modifiers = 0
	ModAbstract Modifiers = 1 << iota
	ModStatic
	ModSealed
	ModOverride
	ModVirtual
	ModReadonly
	ModPartial
)

var modifierOrder = []struct {
	mod  Modifiers
	text string
}{
	{ModAbstract, "abstract"},
	{ModStatic, "static"},
	{ModSealed, "sealed"},
	{ModOverride, "override"},
	{ModVirtual, "virtual"},
	{ModReadonly, "readonly"},
	{ModPartial, "partial"},
}

func (m Modifiers) Has(flag Modifiers) bool {
	return flag != ModNone && m&flag == flag
}

// Format renders the set in declaration order, with partial last.
func (m Modifiers) Format() string {
	if m == ModNone {
		return ""
	}
	parts := make([]string, 0, len(modifierOrder))
	for _, entry := range modifierOrder {
		if m.Has(entry.mod) {
			parts = append(parts, entry.text)
		}
	}
	return strings.Join(parts, " ")
}

// prefix renders the declaration head "access [modifiers] ".
func prefix(access Access, mods Modifiers) string {
	if text := mods.Format(); text != "" {
		return access.String() + " " + text + " "
	}
	return access.String() + " "
}

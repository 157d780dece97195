package rules

import (
	"fmt"
	"sort"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Table check error codes (R100-R199).
const (
	ErrUnknownKind      = "R101" // kind name not in the entity model
	ErrUnknownSlot      = "R102" // slot name not items/annotations/structures
	ErrUnknownBehavior  = "R103" // disjoint set member with no behavior entry
	ErrDefaultNotMember = "R104" // disjoint set default outside its members
	ErrSharedMember     = "R105" // behavior listed in two disjoint sets
)

// ValidationError is one problem found while building a Table.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in a rule file.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", errs[0].Error(), len(errs)-1)
}

// document mirrors the CUE layout for Decode.
type document struct {
	Hierarchy   map[string]map[string][]string `json:"hierarchy"`
	Limits      map[string]map[string]int      `json:"limits"`
	Behaviors   map[string]behaviorDoc         `json:"behaviors"`
	Disjoint    map[string]disjointDoc         `json:"disjoint"`
	Inheritance map[string][]string            `json:"inheritance"`
}

type behaviorDoc struct {
	Category    string   `json:"category"`
	ValidFor    []string `json:"validFor"`
	Description string   `json:"description"`
	Requires    string   `json:"requires"`
}

type disjointDoc struct {
	Members []string `json:"members"`
	Default string   `json:"default"`
}

func build(doc document) (*Table, ValidationErrors) {
	var errs ValidationErrors
	kind := func(field, s string) ir.Kind {
		k, err := ir.ParseKind(s)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrUnknownKind})
		}
		return k
	}

	t := &Table{
		hierarchy:   make(map[ir.Kind]map[ir.Slot][]ir.Kind),
		limits:      make(map[ir.Kind]map[ir.Slot]int),
		behaviors:   make(map[string]Behavior),
		sets:        make(map[string]DisjointSet),
		setOf:       make(map[string]string),
		inheritance: make(map[ir.Kind][]ir.Kind),
	}

	for parent, slots := range doc.Hierarchy {
		pk := kind("hierarchy."+parent, parent)
		t.hierarchy[pk] = make(map[ir.Slot][]ir.Kind)
		for slot, children := range slots {
			field := fmt.Sprintf("hierarchy.%s.%s", parent, slot)
			s, err := ir.ParseSlot(slot)
			if err != nil {
				errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrUnknownSlot})
				continue
			}
			for _, child := range children {
				t.hierarchy[pk][s] = append(t.hierarchy[pk][s], kind(field, child))
			}
		}
	}

	for parent, slots := range doc.Limits {
		pk := kind("limits."+parent, parent)
		t.limits[pk] = make(map[ir.Slot]int)
		for slot, n := range slots {
			s, err := ir.ParseSlot(slot)
			if err != nil {
				errs = append(errs, ValidationError{Field: "limits." + parent + "." + slot, Message: err.Error(), Code: ErrUnknownSlot})
				continue
			}
			t.limits[pk][s] = n
		}
	}

	for token, b := range doc.Behaviors {
		def := Behavior{
			Token:       token,
			Category:    b.Category,
			Description: b.Description,
			Requires:    Evidence(b.Requires),
		}
		for _, k := range b.ValidFor {
			def.ValidFor = append(def.ValidFor, kind("behaviors."+token+".validFor", k))
		}
		t.behaviors[token] = def
	}

	for name, set := range doc.Disjoint {
		field := "disjoint." + name
		for _, m := range set.Members {
			if _, ok := t.behaviors[m]; !ok {
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("unknown behavior %q", m), Code: ErrUnknownBehavior})
			}
			if other, dup := t.setOf[m]; dup {
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("behavior %q already belongs to %q", m, other), Code: ErrSharedMember})
				continue
			}
			t.setOf[m] = name
		}
		if set.Default != "" && !containsAny(set.Members, []string{set.Default}) {
			errs = append(errs, ValidationError{Field: field + ".default", Message: fmt.Sprintf("default %q is not a member", set.Default), Code: ErrDefaultNotMember})
		}
		t.sets[name] = DisjointSet{Name: name, Members: set.Members, Default: set.Default}
		t.setNames = append(t.setNames, name)
	}
	sort.Strings(t.setNames)

	for child, ancestors := range doc.Inheritance {
		ck := kind("inheritance."+child, child)
		for _, a := range ancestors {
			t.inheritance[ck] = append(t.inheritance[ck], kind("inheritance."+child, a))
		}
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool {
			if errs[i].Field != errs[j].Field {
				return errs[i].Field < errs[j].Field
			}
			return errs[i].Message < errs[j].Message
		})
		return nil, errs
	}
	return t, nil
}

// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/cascades/pkg/util"
)

// RuleName enumerates the transformation rules. Each GroupExpr records the
// rules that have been applied to it by name, so the enum is defined here
// rather than next to the rule implementations.
type RuleName uint16

const (
	// InvalidRuleName is not a valid rule.
	InvalidRuleName RuleName = iota

	// ------------------------------------------------------------
	// Exploration rules
	// ------------------------------------------------------------

	// CommuteJoin swaps the inputs of an inner join.
	CommuteJoin
	// AssociateJoin rewrites (A ⋈ B) ⋈ C into A ⋈ (B ⋈ C).
	AssociateJoin
	// PushSelectIntoJoinLeft pushes filter conjuncts that only reference the
	// left input of an inner join below it.
	PushSelectIntoJoinLeft
	// PushSelectIntoJoinRight is the mirror of PushSelectIntoJoinLeft.
	PushSelectIntoJoinRight
	// MergeSelects combines two stacked selects.
	MergeSelects

	// startImplementRules marks the first implementation rule.
	startImplementRules

	// ------------------------------------------------------------
	// Implementation rules
	// ------------------------------------------------------------

	GenerateTableScan
	GenerateIndexScans
	ImplementSelect
	ImplementProject
	GenerateHashJoin
	GenerateMergeJoin
	GenerateNestedLoopJoin
	GenerateHashGroupBy
	GenerateStreamGroupBy
	ImplementLimit
	ImplementUnionAll
	ImplementValues

	// ------------------------------------------------------------
	// Enforcer rules
	// ------------------------------------------------------------

	// EnforceSort allows a Sort to be placed above a group.
	EnforceSort
	// EnforceDistribution allows Redistribute, Gather and Broadcast motions.
	EnforceDistribution
	// EnforceRewind allows a Spool to be placed above a group.
	EnforceRewind

	// NumRuleNames tracks the total count of rule names.
	NumRuleNames
)

var ruleNames = [NumRuleNames]string{
	InvalidRuleName:         "InvalidRuleName",
	CommuteJoin:             "CommuteJoin",
	AssociateJoin:           "AssociateJoin",
	PushSelectIntoJoinLeft:  "PushSelectIntoJoinLeft",
	PushSelectIntoJoinRight: "PushSelectIntoJoinRight",
	MergeSelects:            "MergeSelects",
	startImplementRules:     "startImplementRules",
	GenerateTableScan:       "GenerateTableScan",
	GenerateIndexScans:      "GenerateIndexScans",
	ImplementSelect:         "ImplementSelect",
	ImplementProject:        "ImplementProject",
	GenerateHashJoin:        "GenerateHashJoin",
	GenerateMergeJoin:       "GenerateMergeJoin",
	GenerateNestedLoopJoin:  "GenerateNestedLoopJoin",
	GenerateHashGroupBy:     "GenerateHashGroupBy",
	GenerateStreamGroupBy:   "GenerateStreamGroupBy",
	ImplementLimit:          "ImplementLimit",
	ImplementUnionAll:       "ImplementUnionAll",
	ImplementValues:         "ImplementValues",
	EnforceSort:             "EnforceSort",
	EnforceDistribution:     "EnforceDistribution",
	EnforceRewind:           "EnforceRewind",
}

func (r RuleName) String() string {
	if r >= NumRuleNames {
		return fmt.Sprintf("RuleName(%d)", r)
	}
	return ruleNames[r]
}

// IsExplore returns true if r is an exploration rule.
func (r RuleName) IsExplore() bool {
	return r > InvalidRuleName && r < startImplementRules
}

// IsImplement returns true if r is an implementation rule.
func (r RuleName) IsImplement() bool {
	return r > startImplementRules && r < EnforceSort
}

// IsEnforce returns true if r is an enforcer rule.
func (r RuleName) IsEnforce() bool {
	return r >= EnforceSort && r < NumRuleNames
}

// RuleNameFromString returns the rule with the given name.
func RuleNameFromString(name string) (RuleName, bool) {
	for r := CommuteJoin; r < NumRuleNames; r++ {
		if r != startImplementRules && ruleNames[r] == name {
			return r, true
		}
	}
	return InvalidRuleName, false
}

// RuleSet is a set of rule names.
type RuleSet = util.FastIntSet

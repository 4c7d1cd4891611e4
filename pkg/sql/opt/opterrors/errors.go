// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package opterrors defines the error kinds returned by the optimizer.
// Callers test for a kind with errors.Is against one of the Err* markers and
// extract details with errors.As.
//
// MalformedInput and RuleContractViolation abort a search immediately.
// NoFeasiblePlan and ResourceExceeded are ordinary outcomes that leave the
// choice of a fallback planner to the caller.
package opterrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

var (
	// ErrMalformedInput marks errors caused by a logical tree that references an
	// unknown operator, table or column.
	ErrMalformedInput = errors.New("malformed input")

	// ErrNoFeasiblePlan marks a search that finished without finding any plan
	// that satisfies the required physical properties.
	ErrNoFeasiblePlan = errors.New("no feasible plan")

	// ErrResourceExceeded marks a search aborted because a time, memo size or
	// job count budget ran out.
	ErrResourceExceeded = errors.New("resource exceeded")

	// ErrRuleContractViolation marks an internal invariant failure, typically a
	// transformation rule that produced an expression which is not equivalent
	// to its input.
	ErrRuleContractViolation = errors.New("rule contract violation")
)

// MalformedInputf returns a new MalformedInput error.
func MalformedInputf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrMalformedInput)
}

// RuleContractViolationf returns a new assertion failure marked as a
// RuleContractViolation.
func RuleContractViolationf(format string, args ...interface{}) error {
	return errors.Mark(
		errors.AssertionFailedWithDepthf(1, format, args...), ErrRuleContractViolation,
	)
}

// NoFeasiblePlanError reports the group and required properties for which no
// candidate plan, natural or enforced, could be found.
type NoFeasiblePlanError struct {
	Group    int32
	Required string
}

// NewNoFeasiblePlanError returns a NoFeasiblePlanError marked with
// ErrNoFeasiblePlan.
func NewNoFeasiblePlanError(group int32, required string) error {
	return errors.Mark(&NoFeasiblePlanError{Group: group, Required: required}, ErrNoFeasiblePlan)
}

var _ errors.SafeFormatter = (*NoFeasiblePlanError)(nil)
var _ fmt.Formatter = (*NoFeasiblePlanError)(nil)

// Error implements the error interface.
func (e *NoFeasiblePlanError) Error() string { return fmt.Sprint(e) }

// Format implements the fmt.Formatter interface.
func (e *NoFeasiblePlanError) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }

// SafeFormatError implements the errors.SafeFormatter interface.
func (e *NoFeasiblePlanError) SafeFormatError(p errors.Printer) (next error) {
	p.Printf("no plan for group G%d satisfies required properties %s",
		e.Group, redact.SafeString(e.Required))
	return nil
}

// Resource names the budget that a ResourceExceededError ran out of.
type Resource string

const (
	// ResourceTime is the wall-clock search budget.
	ResourceTime Resource = "time"
	// ResourceJobs is the maximum number of scheduled jobs.
	ResourceJobs Resource = "jobs"
	// ResourceGroups is the maximum number of memo groups.
	ResourceGroups Resource = "groups"
	// ResourceExprs is the maximum number of memo expressions.
	ResourceExprs Resource = "expressions"
)

// SafeValue implements the redact.SafeValue interface.
func (Resource) SafeValue() {}

// ResourceExceededError reports which search budget was exhausted.
type ResourceExceededError struct {
	Resource Resource
	Limit    string
}

// NewResourceExceededError returns a ResourceExceededError marked with
// ErrResourceExceeded.
func NewResourceExceededError(resource Resource, limit interface{}) error {
	return errors.Mark(
		&ResourceExceededError{Resource: resource, Limit: fmt.Sprint(limit)}, ErrResourceExceeded,
	)
}

var _ errors.SafeFormatter = (*ResourceExceededError)(nil)
var _ fmt.Formatter = (*ResourceExceededError)(nil)

// Error implements the error interface.
func (e *ResourceExceededError) Error() string { return fmt.Sprint(e) }

// Format implements the fmt.Formatter interface.
func (e *ResourceExceededError) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }

// SafeFormatError implements the errors.SafeFormatter interface.
func (e *ResourceExceededError) SafeFormatError(p errors.Printer) (next error) {
	p.Printf("optimizer %s budget exceeded (limit %s)", e.Resource, redact.SafeString(e.Limit))
	return nil
}

// IsMalformedInput returns true if err is a MalformedInput error.
func IsMalformedInput(err error) bool { return errors.Is(err, ErrMalformedInput) }

// IsNoFeasiblePlan returns true if err is a NoFeasiblePlan error.
func IsNoFeasiblePlan(err error) bool { return errors.Is(err, ErrNoFeasiblePlan) }

// IsResourceExceeded returns true if err is a ResourceExceeded error.
func IsResourceExceeded(err error) bool { return errors.Is(err, ErrResourceExceeded) }

// IsRuleContractViolation returns true if err is a RuleContractViolation.
func IsRuleContractViolation(err error) bool { return errors.Is(err, ErrRuleContractViolation) }

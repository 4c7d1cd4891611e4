// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opterrors

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	malformed := MalformedInputf("column %q does not exist", "a.z")
	infeasible := NewNoFeasiblePlanError(3, "[ordering: +1]")
	exceeded := NewResourceExceededError(ResourceJobs, 100)
	violation := RuleContractViolationf("rule %s changed output columns", "CommuteJoin")

	testCases := []struct {
		err       error
		malformed bool
		feasible  bool
		exceeded  bool
		violation bool
	}{
		{err: malformed, malformed: true, feasible: true},
		{err: infeasible},
		{err: exceeded, exceeded: true, feasible: true},
		{err: violation, violation: true, feasible: true},
		{err: errors.Wrap(exceeded, "optimizing"), exceeded: true, feasible: true},
	}
	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			require.Equal(t, tc.malformed, IsMalformedInput(tc.err))
			require.Equal(t, !tc.feasible, IsNoFeasiblePlan(tc.err))
			require.Equal(t, tc.exceeded, IsResourceExceeded(tc.err))
			require.Equal(t, tc.violation, IsRuleContractViolation(tc.err))
		})
	}

	require.True(t, errors.HasAssertionFailure(violation))
	require.False(t, IsResourceExceeded(context.Canceled))
}

func TestErrorDetails(t *testing.T) {
	err := errors.Wrap(NewNoFeasiblePlanError(7, "[ordering: +2]"), "optimize")
	var nfp *NoFeasiblePlanError
	require.True(t, errors.As(err, &nfp))
	require.Equal(t, int32(7), nfp.Group)
	require.Equal(t,
		"optimize: no plan for group G7 satisfies required properties [ordering: +2]",
		err.Error())

	err = NewResourceExceededError(ResourceGroups, 10)
	var ree *ResourceExceededError
	require.True(t, errors.As(err, &ree))
	require.Equal(t, ResourceGroups, ree.Resource)
	require.Equal(t, "optimizer groups budget exceeded (limit 10)", err.Error())
}

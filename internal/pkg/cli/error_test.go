package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/emoji"
	"github.com/openshift/operator-upgradepath/internal/pkg/errcode"
	"github.com/openshift/operator-upgradepath/internal/pkg/resolver"
)

func TestRunErrorExitCode(t *testing.T) {
	type spec struct {
		name    string
		err     *RunError
		expCode int
		expMsg  string
	}
	cases := []spec{
		{
			name:    "nil error exits 0",
			expCode: 0,
		},
		{
			name:    "catalog failure",
			err:     &RunError{FailedCatalogs: []string{"quay.io/ns/catalog:v1"}},
			expCode: errcode.CatalogErr,
			expMsg:  "run error: 1 catalog(s) failed: quay.io/ns/catalog:v1",
		},
		{
			name:    "operator failure",
			err:     &RunError{FailedOperators: []string{"quay.io/ns/catalog:v1 foo", "quay.io/ns/catalog:v1 bar"}},
			expCode: errcode.OperatorErr,
			expMsg:  "run error: 2 operator(s) could not be resolved: quay.io/ns/catalog:v1 foo, quay.io/ns/catalog:v1 bar",
		},
		{
			name:    "both",
			err:     &RunError{FailedCatalogs: []string{"a"}, FailedOperators: []string{"b"}},
			expCode: errcode.CatalogErr | errcode.OperatorErr,
			expMsg:  "run error: 1 catalog(s) failed: a; 1 operator(s) could not be resolved: b",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expCode, c.err.ExitCode())
			if c.err != nil {
				assert.Equal(t, c.expMsg, c.err.Error())
			}
		})
	}
}

func TestReportRunError(t *testing.T) {
	t.Run("Testing RunError : should be nil when everything resolved", func(t *testing.T) {
		r := &Report{Catalogs: []CatalogReport{{Image: "a", Operators: []OperatorReport{{Package: "foo"}}}}}
		require.NoError(t, r.RunError())
	})
	t.Run("Testing RunError : should not count operators of a failed catalog", func(t *testing.T) {
		r := &Report{Catalogs: []CatalogReport{{Image: "a", Error: "boom", Operators: []OperatorReport{{Package: "foo", Error: "x"}}}}}
		var runErr *RunError
		require.True(t, errors.As(r.RunError(), &runErr))
		assert.Equal(t, []string{"a"}, runErr.FailedCatalogs)
		assert.Empty(t, runErr.FailedOperators)
	})
}

func TestNewOperatorReport(t *testing.T) {
	t.Run("Testing newOperatorReport : should keep the resolver reason", func(t *testing.T) {
		res := resolver.Result{
			Operator: v1alpha1.Operator{Name: "foo", Channel: "beta", FromVersion: "1.0.0"},
			Err:      &resolver.Error{Reason: resolver.ReasonChannelNotFound, Message: "channel \"beta\" not found"},
		}
		or := newOperatorReport(res)
		assert.Equal(t, OperatorReport{
			Package:     "foo",
			Channel:     "beta",
			FromVersion: "1.0.0",
			Reason:      resolver.ReasonChannelNotFound,
			Error:       res.Err.Error(),
		}, or)
	})
	t.Run("Testing newOperatorReport : should report the resolved channel", func(t *testing.T) {
		path := &resolver.UpgradePath{Package: "foo", Channel: "stable", Steps: []resolver.Step{{Version: "1.0.0"}, {Version: "1.1.0"}}}
		or := newOperatorReport(resolver.Result{Operator: v1alpha1.Operator{Name: "foo"}, Path: path})
		assert.Equal(t, "stable", or.Channel)
		assert.Equal(t, "1.0.0 "+emoji.RightArrow+" 1.1.0", pathString(or.UpgradePath))
	})
}

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openshift/operator-upgradepath/internal/pkg/cli"
	"github.com/openshift/operator-upgradepath/internal/pkg/errcode"
)

func TestExitCodeFromError(t *testing.T) {
	type spec struct {
		name    string
		err     error
		expCode int
	}
	cases := []spec{
		{name: "no error", err: nil, expCode: 0},
		{name: "generic error", err: errors.New("boom"), expCode: errcode.GenericErr},
		{name: "run error", err: &cli.RunError{FailedOperators: []string{"foo"}}, expCode: errcode.OperatorErr},
		{name: "wrapped run error", err: fmt.Errorf("wrapped: %w", &cli.RunError{FailedCatalogs: []string{"a"}}), expCode: errcode.CatalogErr},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expCode, exitCodeFromError(c.err))
		})
	}
}

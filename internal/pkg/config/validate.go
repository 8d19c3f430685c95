package config

import (
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/image"
)

type validationFunc func(cfg *v1alpha1.FilterConfiguration) []error

var validationChecks = []validationFunc{validateCatalogs, validateOperators}

// Validate will check a FilterConfiguration for input errors.
func Validate(cfg *v1alpha1.FilterConfiguration) error {
	var errs []error
	if cfg.Kind != v1alpha1.FilterConfigurationKind {
		errs = append(errs, fmt.Errorf("invalid configuration: kind %q, expected %q", cfg.Kind, v1alpha1.FilterConfigurationKind))
	}
	for _, check := range validationChecks {
		if validationErrs := check(cfg); len(validationErrs) > 0 {
			errs = append(errs, fmt.Errorf("invalid configuration: %v", utilerrors.NewAggregate(validationErrs)))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func validateCatalogs(cfg *v1alpha1.FilterConfiguration) []error {
	if len(cfg.Catalogs) == 0 {
		return []error{errors.New("at least one catalog is required")}
	}
	seen := sets.New[string]()
	errs := []error{}
	for _, c := range cfg.Catalogs {
		if seen.Has(c) {
			errs = append(errs, fmt.Errorf("catalog %q: duplicate found in configuration", c))
		}
		seen.Insert(c)
	}
	if _, err := image.ParseRefs(cfg.Catalogs); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func validateOperators(cfg *v1alpha1.FilterConfiguration) []error {
	seen := sets.New[string]()
	errs := []error{}
	for i, op := range cfg.Operators {
		if op.Name == "" {
			errs = append(errs, fmt.Errorf("package at index %d: name is required", i))
			continue
		}
		key := op.Name + "/" + op.Channel
		if seen.Has(key) {
			errs = append(errs, fmt.Errorf("package %q channel %q: duplicate found in configuration", op.Name, op.Channel))
		}
		seen.Insert(key)
	}
	return errs
}

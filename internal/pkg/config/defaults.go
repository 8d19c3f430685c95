package config

import (
	"strings"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

// Complete normalizes user input before validation.
func Complete(cfg *v1alpha1.FilterConfiguration) {
	for i, c := range cfg.Catalogs {
		cfg.Catalogs[i] = strings.TrimSpace(c)
	}
	for i := range cfg.Operators {
		op := &cfg.Operators[i]
		op.Name = strings.TrimSpace(op.Name)
		op.Channel = strings.TrimSpace(op.Channel)
		op.FromVersion = strings.TrimSpace(op.FromVersion)
	}
}

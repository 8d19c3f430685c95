package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// FilterConfiguration object kind.
const FilterConfigurationKind = "FilterConfiguration"

// FilterConfiguration selects the catalogs to acquire and the operators to
// resolve upgrade paths for.
type FilterConfiguration struct {
	metav1.TypeMeta `json:",inline"`

	// Catalogs are catalog image references sharing one repository,
	// e.g. registry.redhat.io/redhat/redhat-operator-index:v4.15
	Catalogs []string `json:"catalogs"`
	// Operators to resolve. Empty means every package in each catalog.
	Operators []Operator `json:"packages,omitempty"`
}

// Operator is the per package resolution request.
type Operator struct {
	Name string `json:"name"`
	// Channel defaults to the package's defaultChannel.
	Channel string `json:"channel,omitempty"`
	// FromVersion is the currently installed version. When empty the path
	// starts at the earliest entry of the channel's replaces chain.
	FromVersion string `json:"fromVersion,omitempty"`
}

func (o Operator) String() string {
	s := o.Name
	if o.Channel != "" {
		s += "/" + o.Channel
	}
	if o.FromVersion != "" {
		s += "@" + o.FromVersion
	}
	return s
}

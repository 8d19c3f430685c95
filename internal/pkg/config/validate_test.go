package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

func TestValidate(t *testing.T) {
	typeMeta := metav1.TypeMeta{Kind: v1alpha1.FilterConfigurationKind}

	type spec struct {
		name     string
		config   v1alpha1.FilterConfiguration
		expError string
	}

	cases := []spec{
		{
			name: "Valid/SameChannelDifferentPackages",
			config: v1alpha1.FilterConfiguration{
				TypeMeta: typeMeta,
				Catalogs: []string{"quay.io/example/catalog:v1", "quay.io/example/catalog:v2"},
				Operators: []v1alpha1.Operator{
					{Name: "foo", Channel: "stable"},
					{Name: "foo", Channel: "fast"},
					{Name: "bar", Channel: "stable"},
				},
			},
		},
		{
			name:     "Invalid/NoCatalogs",
			config:   v1alpha1.FilterConfiguration{TypeMeta: typeMeta},
			expError: "invalid configuration: at least one catalog is required",
		},
		{
			name: "Invalid/DuplicateCatalog",
			config: v1alpha1.FilterConfiguration{
				TypeMeta: typeMeta,
				Catalogs: []string{"quay.io/example/catalog:v1", "quay.io/example/catalog:v1"},
			},
			expError: `catalog "quay.io/example/catalog:v1": duplicate found in configuration`,
		},
		{
			name: "Invalid/UnsupportedTransport",
			config: v1alpha1.FilterConfiguration{
				TypeMeta: typeMeta,
				Catalogs: []string{"oci:///tmp/catalog"},
			},
			expError: "only the docker transport is supported",
		},
		{
			name: "Invalid/EmptyPackageName",
			config: v1alpha1.FilterConfiguration{
				TypeMeta:  typeMeta,
				Catalogs:  []string{"quay.io/example/catalog:v1"},
				Operators: []v1alpha1.Operator{{Channel: "stable"}},
			},
			expError: "package at index 0: name is required",
		},
		{
			name: "Invalid/WrongKind",
			config: v1alpha1.FilterConfiguration{
				TypeMeta: metav1.TypeMeta{Kind: "Other"},
				Catalogs: []string{"quay.io/example/catalog:v1"},
			},
			expError: `kind "Other", expected "FilterConfiguration"`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Validate(&c.config)
			if c.expError == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, c.expError)
		})
	}
}

func TestComplete(t *testing.T) {
	t.Run("Testing Complete : should trim whitespace", func(t *testing.T) {
		cfg := v1alpha1.FilterConfiguration{
			Catalogs:  []string{"  quay.io/example/catalog:v1\n"},
			Operators: []v1alpha1.Operator{{Name: " foo ", Channel: " stable", FromVersion: "v1.2.0 "}},
		}
		Complete(&cfg)
		require.Equal(t, []string{"quay.io/example/catalog:v1"}, cfg.Catalogs)
		require.Equal(t, v1alpha1.Operator{Name: "foo", Channel: "stable", FromVersion: "v1.2.0"}, cfg.Operators[0])
	})

	t.Run("Testing Complete : should keep entry names starting with v", func(t *testing.T) {
		cfg := v1alpha1.FilterConfiguration{
			Operators: []v1alpha1.Operator{{Name: "volsync-product", FromVersion: "volsync-product.v0.8.0"}},
		}
		Complete(&cfg)
		require.Equal(t, "volsync-product.v0.8.0", cfg.Operators[0].FromVersion)
	})
}

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

var (
	errMissingKind     = errors.New("configuration missing `kind`")
	errMissingCatalogs = errors.New("configuration missing the `catalogs` stanza")
)

// ReadConfig opens a filter configuration file at the given path and loads it
// into a v1alpha1.FilterConfiguration instance for processing and validation.
func ReadConfig(fs afero.Fs, configPath string) (v1alpha1.FilterConfiguration, error) {
	data, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return v1alpha1.FilterConfiguration{}, fmt.Errorf("could not read config: %w", err)
	}

	var configMap map[string]any
	if err := yaml.UnmarshalStrict(data, &configMap); err != nil {
		return v1alpha1.FilterConfiguration{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	configKind, ok := configMap["kind"]
	if !ok {
		return v1alpha1.FilterConfiguration{}, errMissingKind
	}
	if configKind != v1alpha1.FilterConfigurationKind {
		return v1alpha1.FilterConfiguration{}, fmt.Errorf("cannot parse %q as %q", configKind, v1alpha1.FilterConfigurationKind)
	}
	if _, ok := configMap["catalogs"]; !ok {
		return v1alpha1.FilterConfiguration{}, errMissingCatalogs
	}

	cfg, err := LoadConfig[v1alpha1.FilterConfiguration](data, v1alpha1.FilterConfigurationKind)
	if err != nil {
		return v1alpha1.FilterConfiguration{}, err
	}
	cfg.SetGroupVersionKind(v1alpha1.GroupVersion.WithKind(v1alpha1.FilterConfigurationKind))
	Complete(&cfg)
	if err := Validate(&cfg); err != nil {
		return v1alpha1.FilterConfiguration{}, err
	}
	return cfg, nil
}

// LoadConfig decodes YAML or JSON data into T, rejecting unknown fields.
func LoadConfig[T any](data []byte, kind string) (c T, err error) {
	if data, err = yaml.YAMLToJSON(data); err != nil {
		return c, fmt.Errorf("yaml to json %s: %v", kind, err)
	}

	var res T
	dec := json.NewDecoder(bytes.NewBuffer(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return c, fmt.Errorf("decode %s: %v", kind, err)
	}
	return res, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blang/semver/v4"
	"github.com/operator-framework/operator-registry/alpha/declcfg"
	"github.com/operator-framework/operator-registry/alpha/property"
	"github.com/spf13/afero"

	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
)

type BuilderInterface interface {
	Build(ctx context.Context, fsys afero.Fs, configDir string) (*Catalog, error)
}

// Builder parses a declarative config tree into a Catalog.
type Builder struct {
	Log clog.PluggableLoggerInterface
}

func NewBuilder(log clog.PluggableLoggerInterface) *Builder {
	return &Builder{Log: log}
}

type sourced[T any] struct {
	path string
	doc  T
}

// Build streams every document below configDir, regardless of how they are
// grouped into files, and links them into a Catalog. Documents with an
// unknown schema are ignored. Files are walked one at a time in lexical
// order, so duplicate reports always name the same first declaration.
func (b *Builder) Build(ctx context.Context, fsys afero.Fs, configDir string) (*Catalog, error) {
	cat := newCatalog()
	packagePaths := map[string]string{}
	var channels []sourced[declcfg.Channel]
	var bundles []sourced[declcfg.Bundle]
	ignored := 0

	root := afero.NewIOFS(afero.NewBasePathFs(fsys, configDir))
	err := declcfg.WalkMetasFS(ctx, root, func(path string, meta *declcfg.Meta, err error) error {
		if err != nil {
			return &ParseError{Path: path, Message: "invalid document", err: err}
		}
		switch meta.Schema {
		case declcfg.SchemaPackage:
			var p declcfg.Package
			if err := json.Unmarshal(meta.Blob, &p); err != nil {
				return &ParseError{Path: path, Message: "decode " + meta.Schema, err: err}
			}
			if p.Name == "" {
				return parseErrorf(path, "package without a name")
			}
			if prev, ok := packagePaths[p.Name]; ok {
				return parseErrorf(path, "duplicate package %q, first declared in %s", p.Name, prev)
			}
			packagePaths[p.Name] = path
			cat.Packages[p.Name] = p
		case declcfg.SchemaChannel:
			var c declcfg.Channel
			if err := json.Unmarshal(meta.Blob, &c); err != nil {
				return &ParseError{Path: path, Message: "decode " + meta.Schema, err: err}
			}
			channels = append(channels, sourced[declcfg.Channel]{path: path, doc: c})
		case declcfg.SchemaBundle:
			var bundle declcfg.Bundle
			if err := json.Unmarshal(meta.Blob, &bundle); err != nil {
				return &ParseError{Path: path, Message: "decode " + meta.Schema, err: err}
			}
			bundles = append(bundles, sourced[declcfg.Bundle]{path: path, doc: bundle})
		default:
			ignored++
		}
		return nil
	}, declcfg.WithConcurrency(1))
	if err != nil {
		return nil, err
	}

	// packages may be declared after the documents referencing them
	for _, s := range bundles {
		if err := b.addBundle(cat, s.path, s.doc); err != nil {
			return nil, err
		}
	}
	for _, s := range channels {
		if err := b.addChannel(cat, s.path, s.doc); err != nil {
			return nil, err
		}
	}

	b.Log.Debug("catalog %s: %d packages, %d channels, %d bundles, %d documents ignored",
		configDir, len(cat.Packages), len(channels), len(bundles), ignored)
	return cat, nil
}

func (b *Builder) addBundle(cat *Catalog, path string, bundle declcfg.Bundle) error {
	if _, ok := cat.Packages[bundle.Package]; !ok {
		return parseErrorf(path, "bundle %q references undeclared package %q", bundle.Name, bundle.Package)
	}
	if cat.Bundles[bundle.Package] == nil {
		cat.Bundles[bundle.Package] = map[string]declcfg.Bundle{}
	}
	if prev, ok := cat.Bundles[bundle.Package][bundle.Name]; ok {
		if !BundlesEqual(prev, bundle) {
			return parseErrorf(path, "conflicting definitions of bundle %q in package %q", bundle.Name, bundle.Package)
		}
		b.Log.Trace("ignoring identical duplicate of bundle %s", bundle.Name)
		return nil
	}
	cat.Bundles[bundle.Package][bundle.Name] = bundle
	return nil
}

func (b *Builder) addChannel(cat *Catalog, path string, c declcfg.Channel) error {
	if _, ok := cat.Packages[c.Package]; !ok {
		return parseErrorf(path, "channel %q references undeclared package %q", c.Name, c.Package)
	}
	if _, ok := cat.Channels[c.Package][c.Name]; ok {
		return parseErrorf(path, "duplicate channel %q in package %q", c.Name, c.Package)
	}

	ch := &Channel{Name: c.Name, Package: c.Package, byName: map[string]*Entry{}}
	for _, ce := range c.Entries {
		if _, ok := ch.byName[ce.Name]; ok {
			return parseErrorf(path, "duplicate entry %q in channel %q of package %q", ce.Name, c.Name, c.Package)
		}
		e := &Entry{ChannelEntry: ce}
		if ce.SkipRange != "" {
			r, err := semver.ParseRange(ce.SkipRange)
			if err != nil {
				return &ParseError{Path: path, Message: fmt.Sprintf("entry %q has invalid skipRange %q", ce.Name, ce.SkipRange), err: err}
			}
			e.SkipRange = r
		}
		e.Version = entryVersion(cat.Bundles[c.Package][ce.Name], ce.Name)
		ch.Entries = append(ch.Entries, e)
		ch.byName[ce.Name] = e
	}

	if cat.Channels[c.Package] == nil {
		cat.Channels[c.Package] = map[string]*Channel{}
	}
	cat.Channels[c.Package][c.Name] = ch
	return nil
}

// entryVersion prefers the bundle's olm.package property and falls back to
// the version embedded in the entry name.
func entryVersion(bundle declcfg.Bundle, name string) *semver.Version {
	if props, err := property.Parse(bundle.Properties); err == nil && len(props.Packages) > 0 {
		if v, err := semver.Parse(props.Packages[0].Version); err == nil {
			return &v
		}
	}
	if v, ok := entryNameVersion(name); ok {
		return &v
	}
	return nil
}

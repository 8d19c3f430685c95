package catalog

import (
	"slices"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/operator-framework/operator-registry/alpha/declcfg"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Catalog is the package/channel/entry/bundle graph of one catalog image.
// It is read-only once built.
type Catalog struct {
	// Packages by name.
	Packages map[string]declcfg.Package
	// Channels by package, then channel name.
	Channels map[string]map[string]*Channel
	// Bundles by package, then bundle name.
	Bundles map[string]map[string]declcfg.Bundle
}

// Channel is a declcfg.Channel with its entries indexed by name.
type Channel struct {
	Name    string
	Package string
	// Entries in declaration order.
	Entries []*Entry
	byName  map[string]*Entry
}

// Entry is a channel entry with its parsed version data.
type Entry struct {
	declcfg.ChannelEntry
	// Version is nil when neither the bundle nor the name carries one.
	Version *semver.Version
	// SkipRange is nil when the entry declares none.
	SkipRange semver.Range
}

func newCatalog() *Catalog {
	return &Catalog{
		Packages: map[string]declcfg.Package{},
		Channels: map[string]map[string]*Channel{},
		Bundles:  map[string]map[string]declcfg.Bundle{},
	}
}

// Package returns the named package.
func (c *Catalog) Package(name string) (declcfg.Package, bool) {
	p, ok := c.Packages[name]
	return p, ok
}

// PackageNames returns every package name, sorted.
func (c *Catalog) PackageNames() []string {
	return sets.List(sets.KeySet(c.Packages))
}

// Channel returns the channel of pkg named name.
func (c *Catalog) Channel(pkg, name string) (*Channel, bool) {
	ch, ok := c.Channels[pkg][name]
	return ch, ok
}

// ChannelNames returns the channels of pkg, sorted.
func (c *Catalog) ChannelNames(pkg string) []string {
	return sets.List(sets.KeySet(c.Channels[pkg]))
}

// Bundle returns the bundle of pkg named name.
func (c *Catalog) Bundle(pkg, name string) (declcfg.Bundle, bool) {
	b, ok := c.Bundles[pkg][name]
	return b, ok
}

// Entry returns the entry named name.
func (ch *Channel) Entry(name string) (*Entry, bool) {
	e, ok := ch.byName[name]
	return e, ok
}

// EntryNames returns the entry names, sorted.
func (ch *Channel) EntryNames() []string {
	names := make([]string, 0, len(ch.Entries))
	for _, e := range ch.Entries {
		names = append(names, e.Name)
	}
	slices.Sort(names)
	return names
}

// Matches reports whether version identifies the entry, either by name or
// by semantic version.
func (e *Entry) Matches(version string) bool {
	if e.Name == version {
		return true
	}
	if e.Version == nil {
		return false
	}
	v, err := semver.ParseTolerant(version)
	return err == nil && v.EQ(*e.Version)
}

// InSkipRange reports whether version falls inside the entry's skipRange.
func (e *Entry) InSkipRange(version string) bool {
	if e.SkipRange == nil {
		return false
	}
	v, err := semver.ParseTolerant(version)
	return err == nil && e.SkipRange(v)
}

// VersionString is the entry's version, or its name when it has none.
func (e *Entry) VersionString() string {
	if e.Version == nil {
		return e.Name
	}
	return e.Version.String()
}

// entryNameVersion parses the version out of names like foo.v1.2.3.
func entryNameVersion(name string) (semver.Version, bool) {
	nameSplit := strings.Split(name, ".")
	if len(nameSplit) < 4 {
		return semver.Version{}, false
	}
	version, err := semver.ParseTolerant(strings.Join(nameSplit[1:], "."))
	if err != nil {
		return semver.Version{}, false
	}
	return version, true
}

package resolver

import (
	"strings"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/catalog"
)

// UpgradePath is the ordered upgrade sequence of one operator, from the
// starting point to the channel head, both included.
type UpgradePath struct {
	Package string `json:"package"`
	Channel string `json:"channel"`
	Head    string `json:"head"`
	Steps   []Step `json:"steps"`
}

// Step is one version on the path with the image installing it. The
// first step has no image when the installed version is not an entry of
// the channel.
type Step struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Image         string   `json:"bundleImage,omitempty"`
	RelatedImages []string `json:"relatedImages,omitempty"`
}

// Result pairs an operator request with its path or failure.
type Result struct {
	Operator v1alpha1.Operator
	Path     *UpgradePath
	Err      error
}

// Resolve computes the upgrade path of op through cat. It performs no I/O.
func Resolve(cat *catalog.Catalog, op v1alpha1.Operator) (UpgradePath, error) {
	pkg, ok := cat.Package(op.Name)
	if !ok {
		return UpgradePath{}, newError(ReasonChannelNotFound, "package %q not found in catalog", op.Name)
	}
	channelName := op.Channel
	if channelName == "" {
		channelName = pkg.DefaultChannel
	}
	if channelName == "" {
		return UpgradePath{}, newError(ReasonChannelNotFound, "package %q declares no defaultChannel and no channel was requested", op.Name)
	}
	ch, ok := cat.Channel(op.Name, channelName)
	if !ok {
		return UpgradePath{}, newError(ReasonChannelNotFound, "channel %q not found in package %q (available: %s)",
			channelName, op.Name, strings.Join(cat.ChannelNames(op.Name), ", "))
	}

	channelGraph := newUpgradeGraph(ch, "")
	if cycle := channelGraph.findCycle(); cycle != nil {
		return UpgradePath{}, newError(ReasonCycleDetected, "channel %q of package %q: %s", ch.Name, ch.Package, strings.Join(cycle, " -> "))
	}

	head, err := channelHead(ch)
	if err != nil {
		return UpgradePath{}, err
	}

	start, err := startingPoint(ch, channelGraph, head, op.FromVersion)
	if err != nil {
		return UpgradePath{}, err
	}

	path := newUpgradeGraph(ch, start).shortestPath(start, head)
	if path == nil {
		return UpgradePath{}, newError(ReasonNoUpgradePath, "no upgrade path from %s to %s in channel %q of package %q", start, head, ch.Name, ch.Package)
	}

	up := UpgradePath{Package: op.Name, Channel: ch.Name, Head: head}
	for _, name := range path {
		up.Steps = append(up.Steps, step(cat, ch, name))
	}
	return up, nil
}

// ResolveAll resolves every operator, or the default channel of every
// package when ops is empty. One failure never prevents the others.
func ResolveAll(cat *catalog.Catalog, ops []v1alpha1.Operator) []Result {
	if len(ops) == 0 {
		for _, name := range cat.PackageNames() {
			ops = append(ops, v1alpha1.Operator{Name: name})
		}
	}
	results := make([]Result, 0, len(ops))
	for _, op := range ops {
		path, err := Resolve(cat, op)
		if err != nil {
			results = append(results, Result{Operator: op, Err: err})
			continue
		}
		results = append(results, Result{Operator: op, Path: &path})
	}
	return results
}

// channelHead is the one entry not named by any replaces or skips of the
// channel.
func channelHead(ch *catalog.Channel) (string, error) {
	referenced := map[string]bool{}
	for _, e := range ch.Entries {
		if e.Replaces != "" {
			referenced[e.Replaces] = true
		}
		for _, s := range e.Skips {
			referenced[s] = true
		}
	}
	var heads []string
	for _, name := range ch.EntryNames() {
		if !referenced[name] {
			heads = append(heads, name)
		}
	}
	switch len(heads) {
	case 0:
		return "", newError(ReasonNoHead, "every entry of channel %q of package %q is replaced or skipped", ch.Name, ch.Package)
	case 1:
		return heads[0], nil
	default:
		return "", newError(ReasonAmbiguousHead, "channel %q of package %q has %d heads: %s", ch.Name, ch.Package, len(heads), strings.Join(heads, ", "))
	}
}

// startingPoint maps fromVersion to an entry, or keeps it as a virtual
// node when only a skipRange covers it. Without fromVersion it is the
// earliest entry reaching head: one with no incoming upgrade edge, the
// lowest version winning, then the lexically smaller name.
func startingPoint(ch *catalog.Channel, g upgradeGraph, head, fromVersion string) (string, error) {
	if fromVersion == "" {
		return earliestEntry(ch, g, head), nil
	}

	if e, ok := ch.Entry(fromVersion); ok {
		return e.Name, nil
	}
	for _, name := range ch.EntryNames() {
		if e, _ := ch.Entry(name); e.Matches(fromVersion) {
			return e.Name, nil
		}
	}
	for _, e := range ch.Entries {
		if e.InSkipRange(fromVersion) {
			return fromVersion, nil
		}
	}
	return "", newError(ReasonStartingVersionNotReachable, "version %s is neither an entry of channel %q of package %q nor inside any skipRange",
		fromVersion, ch.Name, ch.Package)
}

func earliestEntry(ch *catalog.Channel, g upgradeGraph, head string) string {
	incoming := map[string]bool{}
	for _, edges := range g {
		for _, e := range edges {
			incoming[e.to] = true
		}
	}
	var best *catalog.Entry
	for _, e := range ch.Entries {
		if incoming[e.Name] || !g.reaches(e.Name, head) {
			continue
		}
		if best == nil || earlier(e, best) {
			best = e
		}
	}
	if best == nil {
		return head
	}
	return best.Name
}

func earlier(x, y *catalog.Entry) bool {
	switch {
	case x.Version != nil && y.Version != nil && !x.Version.EQ(*y.Version):
		return x.Version.LT(*y.Version)
	case x.Version != nil && y.Version == nil:
		return true
	case x.Version == nil && y.Version != nil:
		return false
	}
	return x.Name < y.Name
}

func step(cat *catalog.Catalog, ch *catalog.Channel, name string) Step {
	e, ok := ch.Entry(name)
	if !ok {
		return Step{Name: name, Version: name}
	}
	s := Step{Name: e.Name, Version: e.VersionString()}
	if b, ok := cat.Bundle(ch.Package, e.Name); ok {
		s.Image = b.Image
		for _, ri := range b.RelatedImages {
			s.RelatedImages = append(s.RelatedImages, ri.Image)
		}
	}
	return s
}

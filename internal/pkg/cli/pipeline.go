package cli

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/catalog"
	"github.com/openshift/operator-upgradepath/internal/pkg/consts"
	"github.com/openshift/operator-upgradepath/internal/pkg/emoji"
	"github.com/openshift/operator-upgradepath/internal/pkg/image"
	"github.com/openshift/operator-upgradepath/internal/pkg/resolver"
	"github.com/openshift/operator-upgradepath/internal/pkg/workspace"
)

// ProcessCatalogs acquires, parses and resolves every configured catalog in
// order. A failing catalog is recorded in the report and the next one is
// processed; only a cancelled context stops the loop.
func (o *ExecutorSchema) ProcessCatalogs(ctx context.Context) (*Report, error) {
	report := NewReport()
	for _, c := range o.Config.Catalogs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		o.Log.Info(emoji.Package+" processing catalog %s", c)
		cr := CatalogReport{Image: c}

		cat, err := o.loadCatalog(ctx, c)
		if err != nil {
			o.Log.Error(emoji.CrossMark+" catalog %s: %v", c, err)
			cr.Error = err.Error()
			report.Catalogs = append(report.Catalogs, cr)
			continue
		}

		for _, res := range resolver.ResolveAll(cat, o.Config.Operators) {
			cr.Operators = append(cr.Operators, newOperatorReport(res))
		}
		report.Catalogs = append(report.Catalogs, cr)
	}
	return report, nil
}

// loadCatalog returns the parsed catalog of one image, fetching and
// extracting whatever the working directory does not hold yet.
func (o *ExecutorSchema) loadCatalog(ctx context.Context, catalogImage string) (*catalog.Catalog, error) {
	ref, err := image.ParseRef(catalogImage)
	if err != nil {
		return nil, err
	}

	if o.Layout.BlobsComplete(ref.Name, ref.Version) {
		o.Log.Debug("blobs of %s already fetched", ref)
	} else if err := o.fetch(ctx, ref); err != nil {
		return nil, err
	}

	if o.Layout.CacheComplete(ref.Name, ref.Version) {
		o.Log.Debug("cache of %s already extracted", ref)
	} else if err := o.extract(ref); err != nil {
		return nil, err
	}

	configDir, err := workspace.FindDir(o.Layout.Fs, o.Layout.CacheDir(ref.Name, ref.Version), consts.ConfigsDir)
	if err != nil {
		return nil, err
	}
	o.Log.Debug("declarative config of %s found at %s", ref, configDir)
	return o.Builder.Build(ctx, o.Layout.Fs, configDir)
}

func (o *ExecutorSchema) fetch(ctx context.Context, ref v1alpha1.ImageReference) error {
	o.Log.Info(emoji.LeftPointingMagnifyingGlass+" fetching %s", ref)
	token, err := o.Auth.GetToken(ctx, ref)
	if err != nil {
		return err
	}

	data, err := o.Fetcher.GetManifest(ctx, image.ManifestURL(ref), token)
	if err != nil {
		return err
	}
	manifest, err := o.Fetcher.ParseManifest(data)
	if err != nil {
		return err
	}
	if err := o.Layout.WriteManifest(ref.Name, ref.Version, data); err != nil {
		return err
	}

	final := o.Layout.BlobsDir(ref.Name, ref.Version)
	staging, err := o.Layout.Stage(final)
	if err != nil {
		return err
	}
	if err := o.Fetcher.GetBlobs(ctx, image.BlobsURL(ref), token, manifest.FsLayers, staging); err != nil {
		o.Layout.Discard(staging)
		return err
	}
	return o.Layout.Commit(staging, final)
}

func (o *ExecutorSchema) extract(ref v1alpha1.ImageReference) error {
	data, err := afero.ReadFile(o.Layout.Fs, o.Layout.ManifestFile(ref.Name, ref.Version))
	if err != nil {
		return fmt.Errorf("read manifest of %s: %w", ref, err)
	}
	manifest, err := o.Fetcher.ParseManifest(data)
	if err != nil {
		return err
	}

	o.Log.Info(emoji.RepeatSingleButton+" extracting %d layers of %s", len(manifest.FsLayers), ref)
	final := o.Layout.CacheDir(ref.Name, ref.Version)
	staging, err := o.Layout.Stage(final)
	if err != nil {
		return err
	}
	if err := o.Extractor.ExtractLayers(o.Layout.BlobsDir(ref.Name, ref.Version), staging, manifest.ApplyOrder()); err != nil {
		o.Layout.Discard(staging)
		return err
	}
	return o.Layout.Commit(staging, final)
}

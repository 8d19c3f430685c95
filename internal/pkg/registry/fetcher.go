package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
)

const (
	mediaTypeSchema1Signed = "application/vnd.docker.distribution.manifest.v1+prettyjws"
	mediaTypeSchema1       = "application/vnd.docker.distribution.manifest.v1+json"
	mediaTypeSchema2       = "application/vnd.docker.distribution.manifest.v2+json"
	mediaTypeManifestList  = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// schema 1 is preferred; schema 2 and OCI are normalized by ParseManifest,
// lists and indexes are resolved by GetManifest.
var acceptedManifestTypes = []string{
	mediaTypeSchema1Signed,
	mediaTypeSchema1,
	mediaTypeSchema2,
	ocispec.MediaTypeImageManifest,
	mediaTypeManifestList,
	ocispec.MediaTypeImageIndex,
}

// defaultPlatform is tried when a list has no entry for the host.
var defaultPlatform = ocispec.Platform{OS: "linux", Architecture: "amd64"}

var requiredSchema1Fields = []string{"name", "tag", "architecture", "schemaVersion", "history", "fsLayers"}

// Fetcher pulls manifests and layer blobs with a bearer token. Blobs are
// written through Fs.
type Fetcher struct {
	Log        clog.PluggableLoggerInterface
	Fs         afero.Fs
	client     *http.Client
	platform   ocispec.Platform
	timeout    time.Duration
	parallel   int
	isTerminal bool
	now        func() time.Time
}

func NewFetcher(log clog.PluggableLoggerInterface, client *http.Client, opts Options) *Fetcher {
	return &Fetcher{
		Log:        log,
		Fs:         afero.NewOsFs(),
		client:     client,
		platform:   ocispec.Platform{OS: runtime.GOOS, Architecture: runtime.GOARCH},
		timeout:    opts.timeout(),
		parallel:   opts.parallel(),
		isTerminal: opts.IsTerminal,
		now:        time.Now,
	}
}

// GetManifest performs a GET of the manifest at url. A manifest list or
// image index is resolved to the entry for the host platform, fetched by
// digest with a second GET.
func (f *Fetcher) GetManifest(ctx context.Context, url string, token v1alpha1.Token) ([]byte, error) {
	data, err := f.getManifest(ctx, url, token)
	if err != nil {
		return nil, err
	}
	index, ok := decodeIndex(data)
	if !ok {
		return data, nil
	}
	d, err := selectPlatform(index, f.platform)
	if err != nil {
		return nil, err
	}
	f.Log.Debug("manifest list %s resolved to %s for %s/%s", url, d, f.platform.OS, f.platform.Architecture)

	data, err = f.getManifest(ctx, url[:strings.LastIndex(url, "/")+1]+d.String(), token)
	if err != nil {
		return nil, err
	}
	if actual := d.Algorithm().FromBytes(data); actual != d {
		return nil, &IntegrityError{Expected: d, Actual: actual}
	}
	return data, nil
}

func (f *Fetcher) getManifest(ctx context.Context, url string, token v1alpha1.Token) ([]byte, error) {
	if token.Expired(f.now()) {
		return nil, &AuthExpiredError{ExpiredAt: token.ExpiresAt()}
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, err: err}
	}
	req.Header.Set("Accept", strings.Join(acceptedManifestTypes, ", "))
	setBearer(req, token)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fetchErr(url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(url, err)
	}
	f.Log.Trace("manifest %s (%d bytes, %s)", url, len(data), resp.Header.Get("Content-Type"))
	return data, nil
}

// ParseManifest decodes a schema 1 manifest strictly. Schema 2 and OCI
// image manifests are converted to the same shape with fsLayers ordered
// outermost-first.
func (f *Fetcher) ParseManifest(data []byte) (v1alpha1.Manifest, error) {
	var header struct {
		SchemaVersion int    `json:"schemaVersion"`
		MediaType     string `json:"mediaType"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return v1alpha1.Manifest{}, &ParseError{message: "invalid json", err: err}
	}
	if _, ok := decodeIndex(data); ok {
		return v1alpha1.Manifest{}, &ParseError{message: "manifest list must be resolved to a platform manifest first"}
	}

	switch header.SchemaVersion {
	case 1:
		return parseSchema1(data)
	case 2:
		return parseSchema2(data)
	default:
		return v1alpha1.Manifest{}, &ParseError{message: fmt.Sprintf("unsupported schemaVersion %d", header.SchemaVersion)}
	}
}

// decodeIndex reports whether data is a manifest list or image index. OCI
// indexes may omit their mediaType.
func decodeIndex(data []byte) (ocispec.Index, bool) {
	var index ocispec.Index
	if err := json.Unmarshal(data, &index); err != nil {
		return ocispec.Index{}, false
	}
	switch index.MediaType {
	case mediaTypeManifestList, ocispec.MediaTypeImageIndex:
		return index, true
	case "":
		return index, index.Manifests != nil
	}
	return ocispec.Index{}, false
}

// selectPlatform picks the entry for want, then for linux/amd64, then the
// first one. Catalog content does not depend on the platform.
func selectPlatform(index ocispec.Index, want ocispec.Platform) (digest.Digest, error) {
	if len(index.Manifests) == 0 {
		return "", &ParseError{message: "manifest list has no entries"}
	}
	for _, p := range []ocispec.Platform{want, defaultPlatform} {
		for _, m := range index.Manifests {
			if m.Platform != nil && m.Platform.OS == p.OS && m.Platform.Architecture == p.Architecture {
				return m.Digest, validateDigest(m.Digest)
			}
		}
	}
	return index.Manifests[0].Digest, validateDigest(index.Manifests[0].Digest)
}

func validateDigest(d digest.Digest) error {
	if err := d.Validate(); err != nil {
		return &ParseError{message: "manifest list entry", err: err}
	}
	return nil
}

func parseSchema1(data []byte) (v1alpha1.Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return v1alpha1.Manifest{}, &ParseError{message: "invalid json", err: err}
	}
	for _, field := range requiredSchema1Fields {
		if _, ok := fields[field]; !ok {
			return v1alpha1.Manifest{}, &ParseError{message: "missing required field " + field}
		}
	}

	var m v1alpha1.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return v1alpha1.Manifest{}, &ParseError{message: "decode schema 1", err: err}
	}
	if len(m.FsLayers) == 0 {
		return v1alpha1.Manifest{}, &ParseError{message: "fsLayers is empty"}
	}
	for i, l := range m.FsLayers {
		if err := validateBlobSum(l.BlobSum); err != nil {
			return v1alpha1.Manifest{}, &ParseError{message: fmt.Sprintf("fsLayers[%d]", i), err: err}
		}
	}
	return m, nil
}

func parseSchema2(data []byte) (v1alpha1.Manifest, error) {
	var om ocispec.Manifest
	if err := json.Unmarshal(data, &om); err != nil {
		return v1alpha1.Manifest{}, &ParseError{message: "decode schema 2", err: err}
	}
	if len(om.Layers) == 0 {
		return v1alpha1.Manifest{}, &ParseError{message: "layers is empty"}
	}
	m := v1alpha1.Manifest{SchemaVersion: om.SchemaVersion}
	// layers are listed base first
	for i := len(om.Layers) - 1; i >= 0; i-- {
		d := om.Layers[i].Digest
		if err := validateBlobSum(d); err != nil {
			return v1alpha1.Manifest{}, &ParseError{message: fmt.Sprintf("layers[%d]", i), err: err}
		}
		m.FsLayers = append(m.FsLayers, v1alpha1.FsLayer{BlobSum: d})
	}
	return m, nil
}

func validateBlobSum(d digest.Digest) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Algorithm() != digest.SHA256 {
		return fmt.Errorf("unsupported digest algorithm %s", d.Algorithm())
	}
	return nil
}

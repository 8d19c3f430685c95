package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-containerregistry/pkg/crane"
	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

const (
	testRepo = "ns/catalog"

	fooCatalog = `{"schema":"olm.package","name":"foo","defaultChannel":"stable"}
{"schema":"olm.channel","name":"stable","package":"foo","entries":[
  {"name":"foo.v1.0.0"},
  {"name":"foo.v1.1.0","replaces":"foo.v1.0.0"},
  {"name":"foo.v1.2.0","replaces":"foo.v1.1.0"}
]}
{"schema":"olm.bundle","name":"foo.v1.0.0","package":"foo","image":"quay.io/foo/bundle:v1.0.0","properties":[{"type":"olm.package","value":{"packageName":"foo","version":"1.0.0"}}]}
{"schema":"olm.bundle","name":"foo.v1.1.0","package":"foo","image":"quay.io/foo/bundle:v1.1.0","properties":[{"type":"olm.package","value":{"packageName":"foo","version":"1.1.0"}}]}
{"schema":"olm.bundle","name":"foo.v1.2.0","package":"foo","image":"quay.io/foo/bundle:v1.2.0","properties":[{"type":"olm.package","value":{"packageName":"foo","version":"1.2.0"}}]}
`
)

// catalogRegistry anonymously serves catalog images of testRepo by tag.
type catalogRegistry struct {
	server    *httptest.Server
	manifests map[string][]byte
	blobs     map[digest.Digest][]byte
	requests  atomic.Int32
}

func newCatalogRegistry(t *testing.T) *catalogRegistry {
	t.Helper()
	r := &catalogRegistry{manifests: map[string][]byte{}, blobs: map[digest.Digest][]byte{}}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *catalogRegistry) host() string {
	return strings.TrimPrefix(r.server.URL, "http://")
}

func (r *catalogRegistry) image(tag string) string {
	return r.host() + "/" + testRepo + ":" + tag
}

// addImage publishes tag with one layer per element of layers, base first.
func (r *catalogRegistry) addImage(t *testing.T, tag string, layers ...map[string]string) {
	t.Helper()
	m := v1alpha1.Manifest{Name: testRepo, Tag: tag, Architecture: "amd64", SchemaVersion: 1}
	for _, files := range layers {
		contents := map[string][]byte{}
		for name, data := range files {
			contents[name] = []byte(data)
		}
		layer, err := crane.Layer(contents)
		require.NoError(t, err)
		h, err := layer.Digest()
		require.NoError(t, err)
		rc, err := layer.Compressed()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		d := digest.Digest(h.String())
		r.blobs[d] = data
		// schema 1 lists the top layer first
		m.FsLayers = append([]v1alpha1.FsLayer{{BlobSum: d}}, m.FsLayers...)
		m.History = append(m.History, v1alpha1.History{V1Compatibility: "{}"})
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	r.manifests[tag] = data
}

func (r *catalogRegistry) serve(w http.ResponseWriter, req *http.Request) {
	r.requests.Add(1)
	manifestsPrefix := "/v2/" + testRepo + "/manifests/"
	blobsPrefix := "/v2/" + testRepo + "/blobs/"
	switch {
	case req.URL.Path == "/v2/":
		w.WriteHeader(http.StatusOK)
	case strings.HasPrefix(req.URL.Path, manifestsPrefix):
		data, ok := r.manifests[strings.TrimPrefix(req.URL.Path, manifestsPrefix)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	case strings.HasPrefix(req.URL.Path, blobsPrefix):
		data, ok := r.blobs[digest.Digest(strings.TrimPrefix(req.URL.Path, blobsPrefix))]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

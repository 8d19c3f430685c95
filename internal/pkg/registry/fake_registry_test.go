package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-containerregistry/pkg/crane"
	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/image"
)

const (
	testUser     = "puller"
	testPassword = "s3cr3t"
	testRepo     = "ns/index"
)

// fakeRegistry serves the token exchange, one manifest and a set of blobs.
type fakeRegistry struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	blobs    map[digest.Digest][]byte
	manifest []byte
	// manifests by reference, served before manifest
	manifests map[string][]byte

	anonymous     bool
	tokenStatus   int
	tokenBody     string
	manifestDelay time.Duration

	requests     atomic.Int32
	blobRequests atomic.Int32
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	r := &fakeRegistry{t: t, blobs: map[digest.Digest][]byte{}, manifests: map[string][]byte{}, tokenStatus: http.StatusOK}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRegistry) host() string {
	return strings.TrimPrefix(r.server.URL, "http://")
}

func (r *fakeRegistry) ref(t *testing.T) v1alpha1.ImageReference {
	ref, err := image.ParseRef(r.host() + "/" + testRepo + ":v1")
	require.NoError(t, err)
	return ref
}

// addLayer builds a gzip tar layer holding files and serves it.
func (r *fakeRegistry) addLayer(t *testing.T, files map[string]string) digest.Digest {
	t.Helper()
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
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	d := digest.Digest(h.String())
	r.mu.Lock()
	r.blobs[d] = data
	r.mu.Unlock()
	return d
}

// corrupt serves other bytes for d.
func (r *fakeRegistry) corrupt(d digest.Digest) {
	r.mu.Lock()
	r.blobs[d] = []byte("not the blob you are looking for")
	r.mu.Unlock()
}

// setSchema1 serves a schema 1 manifest listing layers outermost-first.
func (r *fakeRegistry) setSchema1(t *testing.T, layers ...digest.Digest) v1alpha1.Manifest {
	t.Helper()
	m := v1alpha1.Manifest{Name: testRepo, Tag: "v1", Architecture: "amd64", SchemaVersion: 1}
	for _, l := range layers {
		m.FsLayers = append(m.FsLayers, v1alpha1.FsLayer{BlobSum: l})
		m.History = append(m.History, v1alpha1.History{V1Compatibility: "{}"})
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	r.manifest = data
	return m
}

// setManifest serves data for one reference, tag or digest.
func (r *fakeRegistry) setManifest(reference string, data []byte) {
	r.mu.Lock()
	r.manifests[reference] = data
	r.mu.Unlock()
}

func (r *fakeRegistry) serve(w http.ResponseWriter, req *http.Request) {
	r.requests.Add(1)
	switch {
	case req.URL.Path == "/v2/":
		if r.anonymous {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s/token",service="fake-registry"`, r.server.URL))
		w.WriteHeader(http.StatusUnauthorized)
	case req.URL.Path == "/token":
		r.serveToken(w, req)
	case strings.HasPrefix(req.URL.Path, "/v2/"+testRepo+"/manifests/"):
		if !r.authorized(req) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.manifestDelay > 0 {
			time.Sleep(r.manifestDelay)
		}
		r.mu.Lock()
		data, ok := r.manifests[strings.TrimPrefix(req.URL.Path, "/v2/"+testRepo+"/manifests/")]
		r.mu.Unlock()
		if ok {
			_, _ = w.Write(data)
			return
		}
		if r.manifest == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(r.manifest)
	case strings.HasPrefix(req.URL.Path, "/v2/"+testRepo+"/blobs/"):
		r.blobRequests.Add(1)
		if !r.authorized(req) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		d := digest.Digest(strings.TrimPrefix(req.URL.Path, "/v2/"+testRepo+"/blobs/"))
		r.mu.Lock()
		data, ok := r.blobs[d]
		r.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (r *fakeRegistry) serveToken(w http.ResponseWriter, req *http.Request) {
	if req.URL.Query().Get("scope") != "repository:"+testRepo+":pull" || req.URL.Query().Get("service") != "fake-registry" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	user, pass, ok := req.BasicAuth()
	if !ok || user != testUser || pass != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.tokenStatus != http.StatusOK {
		w.WriteHeader(r.tokenStatus)
		return
	}
	if r.tokenBody != "" {
		_, _ = w.Write([]byte(r.tokenBody))
		return
	}
	_, _ = w.Write([]byte(`{"token":"good-token","expires_in":300}`))
}

func (r *fakeRegistry) authorized(req *http.Request) bool {
	if r.anonymous {
		return true
	}
	return req.Header.Get("Authorization") == "Bearer good-token"
}

// writeAuthFile writes a containers auth file holding the test credentials.
func (r *fakeRegistry) writeAuthFile(t *testing.T) string {
	t.Helper()
	auth := base64.StdEncoding.EncodeToString([]byte(testUser + ":" + testPassword))
	content := fmt.Sprintf(`{"auths":{%q:{"auth":%q}}}`, r.host(), auth)
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validToken() v1alpha1.Token {
	return v1alpha1.Token{Token: "good-token", AccessToken: "good-token", ExpiresIn: 300, ReceivedAt: time.Now()}
}

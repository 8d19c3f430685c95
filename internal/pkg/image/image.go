package image

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	digest "github.com/opencontainers/go-digest"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

const (
	dockerProtocol  = "docker://"
	errMessageImage = "%s unable to parse image correctly"
)

// ParseRef parses a catalog image string into an ImageReference. The
// reference must carry a tag or a digest, which becomes the cache version.
// A docker:// transport prefix is tolerated.
func ParseRef(imgRef string) (v1alpha1.ImageReference, error) {
	trimmed := strings.TrimPrefix(imgRef, dockerProtocol)
	if strings.Contains(trimmed, "://") {
		return v1alpha1.ImageReference{}, fmt.Errorf(errMessageImage+" : only the docker transport is supported", imgRef)
	}

	ref, err := name.ParseReference(trimmed, name.StrictValidation)
	if err != nil {
		return v1alpha1.ImageReference{}, fmt.Errorf(errMessageImage+" : %w", imgRef, err)
	}

	repo := ref.Context()
	ir := v1alpha1.ImageReference{
		Registry: repo.RegistryStr(),
		Scheme:   repo.Scheme(),
	}
	path := repo.RepositoryStr()
	if i := strings.LastIndex(path, "/"); i >= 0 {
		ir.Namespace = path[:i]
		ir.Name = path[i+1:]
	} else {
		ir.Name = path
	}

	switch r := ref.(type) {
	case name.Tag:
		ir.Version = r.TagStr()
	case name.Digest:
		d, err := digest.Parse(r.DigestStr())
		if err != nil {
			return v1alpha1.ImageReference{}, fmt.Errorf(errMessageImage+" : invalid digest", imgRef)
		}
		ir.Digest = d
		ir.Version = d.Encoded()
	}
	return ir, nil
}

// ParseRefs parses every catalog and checks they address one repository,
// differing only by version.
func ParseRefs(catalogs []string) ([]v1alpha1.ImageReference, error) {
	refs := make([]v1alpha1.ImageReference, 0, len(catalogs))
	for _, c := range catalogs {
		ref, err := ParseRef(c)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 && refs[0].Base() != ref.Base() {
			return nil, fmt.Errorf("catalog images are expected to share one repository (except for versions): %s and %s", refs[0].Base(), ref.Base())
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func registryURL(ref v1alpha1.ImageReference) string {
	scheme := ref.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + ref.Registry
}

// PingURL is the API version check endpoint used for the auth challenge.
func PingURL(ref v1alpha1.ImageReference) string {
	return registryURL(ref) + "/v2/"
}

// ManifestURL is the manifests endpoint for the reference's tag or digest.
func ManifestURL(ref v1alpha1.ImageReference) string {
	return fmt.Sprintf("%s/v2/%s/manifests/%s", registryURL(ref), ref.Repository(), ref.ManifestReference())
}

// BlobsURL is the blobs endpoint prefix; a digest is appended per blob.
func BlobsURL(ref v1alpha1.ImageReference) string {
	return fmt.Sprintf("%s/v2/%s/blobs/", registryURL(ref), ref.Repository())
}

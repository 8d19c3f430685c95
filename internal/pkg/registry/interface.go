package registry

import (
	"context"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

type AuthInterface interface {
	GetToken(ctx context.Context, ref v1alpha1.ImageReference) (v1alpha1.Token, error)
}

type FetcherInterface interface {
	GetManifest(ctx context.Context, url string, token v1alpha1.Token) ([]byte, error)
	ParseManifest(data []byte) (v1alpha1.Manifest, error)
	GetBlobs(ctx context.Context, blobsURL string, token v1alpha1.Token, layers []v1alpha1.FsLayer, destDir string) error
}

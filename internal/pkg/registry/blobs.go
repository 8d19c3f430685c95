package registry

import (
	"context"
	_ "crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/spinners"
)

// GetBlobs fetches every distinct layer blob into destDir, named by the
// digest's encoded hex. Fetches run concurrently, bounded by the number of
// distinct layers and the configured parallelism. The first error is
// returned and cancels the outstanding fetches. A blob only appears at its
// final path once its content matched the digest.
func (f *Fetcher) GetBlobs(ctx context.Context, blobsURL string, token v1alpha1.Token, layers []v1alpha1.FsLayer, destDir string) error {
	sums := v1alpha1.Manifest{FsLayers: layers}.BlobSums()
	if len(sums) == 0 {
		return nil
	}
	if err := f.Fs.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create blobs directory %s: %w", destDir, err)
	}

	limit := min(len(sums), f.parallel)
	f.Log.Debug("fetching %d blobs (%d in parallel)", len(sums), limit)

	p := spinners.NewProgress(f.isTerminal)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, d := range sums {
		spinner := spinners.AddSpinner(p, "blob "+shortDigest(d))
		g.Go(func() error {
			if err := f.getBlob(gctx, blobsURL, token, d, destDir); err != nil {
				spinner.Abort(false)
				return err
			}
			spinner.Increment()
			return nil
		})
	}
	err := g.Wait()
	p.Wait()
	return err
}

func (f *Fetcher) getBlob(ctx context.Context, blobsURL string, token v1alpha1.Token, d digest.Digest, destDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token.Expired(f.now()) {
		return &AuthExpiredError{ExpiredAt: token.ExpiresAt()}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	url := blobsURL + d.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, err: err}
	}
	setBearer(req, token)

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchErr(url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: url, Status: resp.StatusCode}
	}

	tmp, err := afero.TempFile(f.Fs, destDir, "."+d.Encoded()+".partial-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer f.Fs.Remove(tmpName) // no-op once renamed

	digester := d.Algorithm().Digester()
	_, copyErr := io.Copy(io.MultiWriter(tmp, digester.Hash()), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return fetchErr(url, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("write blob %s: %w", d, closeErr)
	}
	if actual := digester.Digest(); actual != d {
		return &IntegrityError{Expected: d, Actual: actual}
	}

	if err := f.Fs.Rename(tmpName, filepath.Join(destDir, d.Encoded())); err != nil {
		return fmt.Errorf("commit blob %s: %w", d, err)
	}
	f.Log.Trace("blob %s verified", d)
	return nil
}

func shortDigest(d digest.Digest) string {
	enc := d.Encoded()
	if len(enc) > 12 {
		return enc[:12]
	}
	return enc
}

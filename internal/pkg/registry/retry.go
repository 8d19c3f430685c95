package registry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/emoji"
	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
)

// RetryingFetcher retries retryable fetch failures with exponential
// backoff. Auth, integrity and parse failures are returned immediately.
type RetryingFetcher struct {
	FetcherInterface
	Log   clog.PluggableLoggerInterface
	Times uint
	Delay time.Duration
}

// WithRetry wraps f when times is non zero.
func WithRetry(log clog.PluggableLoggerInterface, f FetcherInterface, times uint, delay time.Duration) FetcherInterface {
	if times == 0 {
		return f
	}
	return &RetryingFetcher{FetcherInterface: f, Log: log, Times: times, Delay: delay}
}

func (r *RetryingFetcher) GetManifest(ctx context.Context, url string, token v1alpha1.Token) ([]byte, error) {
	return backoff.RetryNotifyWithData(func() ([]byte, error) {
		data, err := r.FetcherInterface.GetManifest(ctx, url, token)
		return data, permanentUnlessRetryable(err)
	}, r.policy(ctx), r.notify("manifest"))
}

func (r *RetryingFetcher) GetBlobs(ctx context.Context, blobsURL string, token v1alpha1.Token, layers []v1alpha1.FsLayer, destDir string) error {
	return backoff.RetryNotify(func() error {
		return permanentUnlessRetryable(r.FetcherInterface.GetBlobs(ctx, blobsURL, token, layers, destDir))
	}, r.policy(ctx), r.notify("blobs"))
}

func (r *RetryingFetcher) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.Delay > 0 {
		b.InitialInterval = r.Delay
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.Times)), ctx)
}

func (r *RetryingFetcher) notify(what string) backoff.Notify {
	return func(err error, next time.Duration) {
		r.Log.Warn(emoji.Warning+" retrying %s in %s: %v", what, next.Round(time.Millisecond), err)
	}
}

func permanentUnlessRetryable(err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

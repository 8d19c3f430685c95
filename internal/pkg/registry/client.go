package registry

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
)

// NewHTTPClient returns the client shared by the auth client and the
// fetcher. When trace is set every round trip is logged to it.
func NewHTTPClient(opts Options, trace *logrus.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !opts.TLSVerify, //nolint:gosec // user controlled via --tls-verify
		MinVersion:         tls.VersionTLS12,
	}
	var rt http.RoundTripper = transport
	if trace != nil {
		rt = &tracingTransport{base: transport, log: trace}
	}
	return &http.Client{Transport: rt}
}

type tracingTransport struct {
	base http.RoundTripper
	log  *logrus.Logger
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	entry := t.log.WithFields(logrus.Fields{
		"method":   req.Method,
		"url":      req.URL.Redacted(),
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("request failed")
		return resp, err
	}
	entry.WithField("status", resp.StatusCode).Debug("request completed")
	return resp, nil
}

func setBearer(req *http.Request, token v1alpha1.Token) {
	if b := token.Bearer(); b != "" {
		req.Header.Set("Authorization", "Bearer "+b)
	}
}

package v1alpha1

import (
	"fmt"
	"slices"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// ImageReference identifies a single catalog image.
type ImageReference struct {
	Registry  string
	Namespace string
	Name      string
	// Version is the tag, or the encoded digest for digest references.
	Version string
	// Digest is set for references pinned by digest.
	Digest digest.Digest
	// Scheme used to reach the registry (https, or http for loopback hosts).
	Scheme string
}

// Repository returns namespace/name.
func (r ImageReference) Repository() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// Base returns the reference without its version.
func (r ImageReference) Base() string {
	return r.Registry + "/" + r.Repository()
}

func (r ImageReference) String() string {
	if r.Digest != "" {
		return r.Base() + "@" + r.Digest.String()
	}
	return r.Base() + ":" + r.Version
}

// ManifestReference is the tag or digest used in the manifests endpoint.
func (r ImageReference) ManifestReference() string {
	if r.Digest != "" {
		return r.Digest.String()
	}
	return r.Version
}

// Manifest is the registry image manifest, normalized to the schema 1 shape.
type Manifest struct {
	Name          string    `json:"name"`
	Tag           string    `json:"tag"`
	Architecture  string    `json:"architecture"`
	SchemaVersion int       `json:"schemaVersion"`
	History       []History `json:"history,omitempty"`
	// FsLayers are ordered outermost-first.
	FsLayers []FsLayer `json:"fsLayers"`
}

type FsLayer struct {
	BlobSum digest.Digest `json:"blobSum"`
}

// History carries opaque v1 compatibility metadata.
type History struct {
	V1Compatibility string `json:"v1Compatibility"`
}

// BlobSums returns the distinct layer digests in manifest order.
func (m Manifest) BlobSums() []digest.Digest {
	var sums []digest.Digest
	for _, l := range m.FsLayers {
		if !slices.Contains(sums, l.BlobSum) {
			sums = append(sums, l.BlobSum)
		}
	}
	return sums
}

// ApplyOrder returns the layer digests base layer first, which is the
// order they must be extracted in.
func (m Manifest) ApplyOrder() []digest.Digest {
	order := make([]digest.Digest, 0, len(m.FsLayers))
	for i := len(m.FsLayers) - 1; i >= 0; i-- {
		order = append(order, m.FsLayers[i].BlobSum)
	}
	return order
}

// defaultTokenLifetime applies when the token server omits expires_in.
const defaultTokenLifetime = 60 * time.Second

// Token is a bearer token scoped to a single repository.
type Token struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	IssuedAt    string `json:"issued_at"`

	// ReceivedAt is stamped by the client when the token arrives.
	ReceivedAt time.Time `json:"-"`
	// Anonymous is set when the registry did not challenge.
	Anonymous bool `json:"-"`
}

// Bearer returns the credential to send, preferring token.
func (t Token) Bearer() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

// ExpiresAt is issued_at (or the receipt time when issued_at is absent or
// malformed) plus expires_in.
func (t Token) ExpiresAt() time.Time {
	start := t.ReceivedAt
	if t.IssuedAt != "" {
		if issued, err := time.Parse(time.RFC3339, t.IssuedAt); err == nil {
			start = issued
		}
	}
	lifetime := time.Duration(t.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	return start.Add(lifetime)
}

// Expired reports whether the token can no longer be sent at now.
func (t Token) Expired(now time.Time) bool {
	if t.Anonymous {
		return false
	}
	return !now.Before(t.ExpiresAt())
}

func (t Token) String() string {
	return fmt.Sprintf("token(expires %s)", t.ExpiresAt().Format(time.RFC3339))
}

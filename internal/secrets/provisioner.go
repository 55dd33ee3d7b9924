// Package secrets provisions the secrets the chart expects to exist before
// installation.
//
// Every operation is idempotent: a secret that already exists under the
// expected name is reported and left untouched, so credentials generated by a
// previous run are never rotated.
package secrets

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/util/keygen"
	"github.com/cost-onprem/installer/internal/util/labels"
)

// Status is the outcome of one ensure operation.
type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"
	StatusSkipped Status = "skipped"
)

// Result reports what happened to one secret.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// DatabaseRoles are the database users that each get their own credentials.
var DatabaseRoles = []string{"postgres", "koku", "sources", "kruize"}

// Secret name suffixes, prefixed with the release name.
const (
	databaseSuffix    = "-db-credentials"
	storageSuffix     = "-storage-credentials"
	storageOpsSuffix  = "-odf-credentials"
	signingKeySuffix  = "-django-secret"
	sessionSuffix     = "-ui-session-secret"
	oauthClientSuffix = "-ui-oauth-client"
	trustAnchorSuffix = "-trust-anchor"

	sessionSecretBytes = 32
	signingKeyBytes    = 50
)

// Names holds the release-scoped secret names.
type Names struct {
	Database    string
	Storage     string
	StorageOps  string
	SigningKey  string
	Session     string
	OAuthClient string
	TrustAnchor string
}

// NamesFor returns the secret names for a release.
func NamesFor(release string) Names {
	return Names{
		Database:    release + databaseSuffix,
		Storage:     release + storageSuffix,
		StorageOps:  release + storageOpsSuffix,
		SigningKey:  release + signingKeySuffix,
		Session:     release + sessionSuffix,
		OAuthClient: release + oauthClientSuffix,
		TrustAnchor: release + trustAnchorSuffix,
	}
}

// Provisioner creates the release's prerequisite secrets.
type Provisioner struct {
	client    *kube.Client
	namespace string
	release   string
	names     Names

	// fetchChain performs a TLS handshake and returns the presented chain.
	fetchChain ChainFetcher
}

// New creates a Provisioner for a release in a namespace.
func New(client *kube.Client, namespace, release string) *Provisioner {
	return &Provisioner{
		client:     client,
		namespace:  namespace,
		release:    release,
		names:      NamesFor(release),
		fetchChain: fetchPeerChain,
	}
}

// Names returns the secret names this provisioner manages.
func (p *Provisioner) Names() Names {
	return p.names
}

// EnsureDatabaseCredentials creates one user/password pair per database role.
func (p *Provisioner) EnsureDatabaseCredentials(ctx context.Context) (Result, error) {
	return p.ensure(ctx, p.names.Database, labels.ComponentDatabase, func() (map[string][]byte, error) {
		data := make(map[string][]byte, 2*len(DatabaseRoles))
		for _, role := range DatabaseRoles {
			pw, err := keygen.Password(keygen.PasswordLength)
			if err != nil {
				return nil, err
			}
			data[role+"-user"] = []byte(role)
			data[role+"-password"] = []byte(pw)
		}
		return data, nil
	})
}

// EnsureSigningKey creates the application's signing key.
func (p *Provisioner) EnsureSigningKey(ctx context.Context) (Result, error) {
	return p.ensure(ctx, p.names.SigningKey, labels.ComponentUI, func() (map[string][]byte, error) {
		key, err := keygen.Token(signingKeyBytes)
		if err != nil {
			return nil, err
		}
		return map[string][]byte{"secret-key": []byte(key)}, nil
	})
}

// EnsureSessionSecret creates the UI session cookie secret.
func (p *Provisioner) EnsureSessionSecret(ctx context.Context) (Result, error) {
	return p.ensure(ctx, p.names.Session, labels.ComponentUI, func() (map[string][]byte, error) {
		cookie, err := keygen.Token(sessionSecretBytes)
		if err != nil {
			return nil, err
		}
		return map[string][]byte{"cookie-secret": []byte(cookie)}, nil
	})
}

// ensure creates name with generated data unless it already exists. The
// generator only runs when a write is actually needed.
func (p *Provisioner) ensure(ctx context.Context, name, component string, generate func() (map[string][]byte, error)) (Result, error) {
	_, found, err := p.client.GetSecret(ctx, p.namespace, name)
	if err != nil {
		return Result{Name: name}, err
	}
	if found {
		return Result{Name: name, Status: StatusExists}, nil
	}

	data, err := generate()
	if err != nil {
		return Result{Name: name}, fmt.Errorf("failed to generate %s: %w", name, err)
	}
	return p.create(ctx, name, component, data)
}

func (p *Provisioner) create(ctx context.Context, name, component string, data map[string][]byte) (Result, error) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.namespace,
			Labels:    labels.NewLabelBuilder(p.release).WithComponent(component).Build(),
		},
		Type: corev1.SecretTypeOpaque,
		Data: data,
	}
	created, err := p.client.CreateSecretIfAbsent(ctx, secret)
	if err != nil {
		return Result{Name: name}, err
	}
	if !created {
		return Result{Name: name, Status: StatusExists}, nil
	}
	return Result{Name: name, Status: StatusCreated}, nil
}

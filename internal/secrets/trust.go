package secrets

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/util/labels"
)

// TrustAnchorKey is the key of the extracted CA bundle.
const TrustAnchorKey = "ca.crt"

// Cluster locations that may hold the ingress CA.
const (
	ingressCAConfigMapNamespace = "openshift-config-managed"
	ingressCAConfigMap          = "default-ingress-cert"
	ingressCAConfigMapKey       = "ca-bundle.crt"

	routerCASecretNamespace = "openshift-ingress-operator"
	routerCASecret          = "router-ca"
	routerCASecretKey       = "tls.crt"

	handshakeTimeout = 10 * time.Second
)

// ChainFetcher returns the certificate chain a TLS server presents at addr.
type ChainFetcher func(ctx context.Context, addr string) ([]*x509.Certificate, error)

// EnsureTrustAnchor extracts the CA that signs the cluster's ingress
// certificates and stores it for the chart. Sources are tried in order: the
// managed ingress CA bundle, the router CA secret, then a live handshake with
// identityURL. Exhausting all of them is a soft failure.
func (p *Provisioner) EnsureTrustAnchor(ctx context.Context, identityURL string) (Result, error) {
	name := p.names.TrustAnchor

	_, found, err := p.client.GetSecret(ctx, p.namespace, name)
	if err != nil {
		return Result{Name: name}, outcome.Soft(err)
	}
	if found {
		return Result{Name: name, Status: StatusExists}, nil
	}

	type source struct {
		desc  string
		fetch func(context.Context) ([]byte, error)
	}
	sources := []source{
		{ingressCAConfigMapNamespace + "/" + ingressCAConfigMap, p.ingressCABundle},
		{routerCASecretNamespace + "/" + routerCASecret, p.routerCA},
	}
	if identityURL != "" {
		sources = append(sources, source{"handshake with " + identityURL, func(ctx context.Context) ([]byte, error) {
			return p.handshakeCA(ctx, identityURL)
		}})
	}

	var tried []string
	for _, s := range sources {
		tried = append(tried, s.desc)
		data, err := s.fetch(ctx)
		if err != nil || len(data) == 0 {
			continue
		}
		bundle, err := normalizeBundle(data)
		if err != nil {
			continue
		}
		res, err := p.create(ctx, name, labels.ComponentTrust, map[string][]byte{TrustAnchorKey: bundle})
		if err != nil {
			return res, outcome.Soft(err)
		}
		res.Detail = "from " + s.desc
		return res, nil
	}

	return Result{Name: name, Status: StatusSkipped}, outcome.Soft(
		fmt.Errorf("no trust anchor could be extracted; services calling the identity provider over TLS will fail certificate verification"),
		outcome.WithMissing(fmt.Sprintf("%v", tried)),
		outcome.WithRemediation(fmt.Sprintf("kubectl create secret generic %s -n %s --from-file=%s=<ca bundle>", name, p.namespace, TrustAnchorKey)))
}

// TrustBundle returns the stored trust anchor of the release, or nil when
// there is none.
func (p *Provisioner) TrustBundle(ctx context.Context) ([]byte, error) {
	s, found, err := p.client.GetSecret(ctx, p.namespace, p.names.TrustAnchor)
	if err != nil || !found {
		return nil, err
	}
	return s.Data[TrustAnchorKey], nil
}

func (p *Provisioner) ingressCABundle(ctx context.Context) ([]byte, error) {
	cm, found, err := p.client.GetConfigMap(ctx, ingressCAConfigMapNamespace, ingressCAConfigMap)
	if err != nil || !found {
		return nil, err
	}
	return []byte(cm.Data[ingressCAConfigMapKey]), nil
}

func (p *Provisioner) routerCA(ctx context.Context) ([]byte, error) {
	s, found, err := p.client.GetSecret(ctx, routerCASecretNamespace, routerCASecret)
	if err != nil || !found {
		return nil, err
	}
	return s.Data[routerCASecretKey], nil
}

// handshakeCA takes the last certificate of the presented chain, which is the
// closest the server gets to its root.
func (p *Provisioner) handshakeCA(ctx context.Context, rawURL string) ([]byte, error) {
	addr, err := tlsAddress(rawURL)
	if err != nil {
		return nil, err
	}
	chain, err := p.fetchChain(ctx, addr)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%s presented no certificates", addr)
	}
	last := chain[len(chain)-1]
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: last.Raw}), nil
}

func tlsAddress(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid identity URL %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid identity URL %q: no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// fetchPeerChain dials addr and returns the presented chain unverified.
func fetchPeerChain(ctx context.Context, addr string) ([]*x509.Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: handshakeTimeout},
		Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // only used to read the chain
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("TLS handshake with %s failed: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	return conn.(*tls.Conn).ConnectionState().PeerCertificates, nil
}

// normalizeBundle keeps only the certificates that parse as X.509 and
// re-encodes them as PEM.
func normalizeBundle(data []byte) ([]byte, error) {
	var out bytes.Buffer
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			continue
		}
		if err := pem.Encode(&out, block); err != nil {
			return nil, err
		}
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("no X.509 certificate found")
	}
	return out.Bytes(), nil
}

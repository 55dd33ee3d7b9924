package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/util/labels"
)

// DefaultOAuthClientID is the identity provider client the UI signs in with.
const DefaultOAuthClientID = "cost-management-operator"

// OAuthClientSources are the identity-provider secrets that may hold the
// client secret, in lookup order.
var OAuthClientSources = []string{
	"keycloak-client-secret-cost-management-operator",
	"keycloak-client-secret-cost-management-service-account",
	"credential-cost-management-operator",
}

const (
	clientSecretKey = "CLIENT_SECRET"
	clientIDKey     = "CLIENT_ID"
)

// EnsureOAuthClientSecret republishes the identity provider's client secret
// into the release namespace. Without an identity provider it does nothing.
// Every failure is soft: UI authentication is degraded but the install
// continues.
func (p *Provisioner) EnsureOAuthClientSecret(ctx context.Context, identity *resolver.Identity) (Result, error) {
	name := p.names.OAuthClient
	if identity == nil || !identity.Found {
		return Result{Name: name, Status: StatusSkipped, Detail: "identity provider not found"}, nil
	}

	_, found, err := p.client.GetSecret(ctx, p.namespace, name)
	if err != nil {
		return Result{Name: name}, outcome.Soft(err)
	}
	if found {
		return Result{Name: name, Status: StatusExists}, nil
	}

	for _, source := range OAuthClientSources {
		src, found, err := p.client.GetSecret(ctx, identity.Namespace, source)
		if err != nil || !found {
			continue
		}
		clientSecret := string(src.Data[clientSecretKey])
		if clientSecret == "" {
			continue
		}
		clientID := strings.TrimSpace(string(src.Data[clientIDKey]))
		if clientID == "" {
			clientID = DefaultOAuthClientID
		}

		res, err := p.create(ctx, name, labels.ComponentAuth, map[string][]byte{
			"client-id":     []byte(clientID),
			"client-secret": []byte(clientSecret),
		})
		if err != nil {
			return res, outcome.Soft(err)
		}
		res.Detail = "from " + identity.Namespace + "/" + source
		return res, nil
	}

	return Result{Name: name, Status: StatusSkipped}, outcome.Soft(
		fmt.Errorf("no client secret found in namespace %s", identity.Namespace),
		outcome.WithMissing(fmt.Sprintf("secret %s (key %s) in %s", OAuthClientSources[0], clientSecretKey, identity.Namespace)),
		outcome.WithRemediation("create the cost-management-operator client in the identity provider realm, then rerun the installer"))
}

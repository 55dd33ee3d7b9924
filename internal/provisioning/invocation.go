package provisioning

import (
	"fmt"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/secrets"
)

// BuildInvocation turns the resolved state into one chart invocation. Every
// resolved field becomes an explicit override, in a fixed order, followed by
// the user's --set overrides so those win.
func BuildInvocation(settings *config.Settings, values config.ValuesDocument, st *ResolvedConfiguration, names secrets.Names) (*helm.Invocation, error) {
	inv := helm.NewInvocation(settings.Chart, st.ReleaseName, st.Namespace, values)

	inv.SetString("global.platform", string(st.Platform))
	if f := st.Facts; f != nil {
		inv.SetString("global.clusterDomain", f.ClusterDomain)
		inv.SetString("global.storageClass", f.StorageClassName)
		inv.SetString("global.fsGroup", f.FSGroup)
	}

	// The fallback keeps the chart's placeholder endpoint.
	if s := st.Storage; s != nil && s.Strategy != resolver.StrategyFallback {
		inv.SetString("storage.endpoint", s.Endpoint)
		inv.Set("storage.port", s.Port)
		inv.Set("storage.useTLS", s.UseTLS)
		inv.SetString("storage.region", s.Region)
		inv.SetString("storage.existingSecret", storageSecretName(s, names))
		inv.SetString("storage.credentialSource", string(s.CredentialSource))
		if s.CredentialSource == resolver.CredentialsExternalClaim {
			for _, logical := range resolver.LogicalBuckets {
				inv.SetString("storage.bucket."+logical, s.Buckets[logical])
			}
		}
	}

	if b := st.Broker; b != nil {
		inv.SetString("kafka.bootstrapServers", b.BootstrapAddress)
		inv.SetString("kafka.securityProtocol", b.SecurityProtocol)
	}

	if id := st.Identity; id != nil && id.Found {
		inv.Set("keycloak.enabled", true)
		inv.SetString("keycloak.namespace", id.Namespace)
		inv.SetString("keycloak.url", id.URL)
	} else {
		inv.Set("keycloak.enabled", false)
	}

	if st.secretAvailable(names.OAuthClient) {
		inv.SetString("ui.oauth.existingSecret", names.OAuthClient)
	}
	if st.secretAvailable(names.TrustAnchor) {
		inv.SetString("global.trustAnchorSecret", names.TrustAnchor)
	}

	for _, kv := range settings.SetOverrides {
		if err := inv.AddRaw(kv); err != nil {
			return nil, fmt.Errorf("invalid override %q: %w", kv, err)
		}
	}
	return inv, nil
}

func storageSecretName(s *resolver.Storage, names secrets.Names) string {
	if s.ExistingSecretName != "" {
		return s.ExistingSecretName
	}
	if s.ManagesCredentials() {
		return names.Storage
	}
	return ""
}

package secrets

import (
	"context"
	"fmt"

	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/util/labels"
)

// Keys of the storage credential secret.
const (
	AccessKeyField = "access-key"
	SecretKeyField = "secret-key"

	operatorAccessKeyField = "AWS_ACCESS_KEY_ID"
	operatorSecretKeyField = "AWS_SECRET_ACCESS_KEY"
)

// StorageCredentialsInput carries what EnsureStorageCredentials needs.
type StorageCredentialsInput struct {
	Storage *resolver.Storage

	// AccessKey and SecretKey are explicit credentials; both must be set to
	// be used.
	AccessKey string
	SecretKey string

	Skip bool
}

// EnsureStorageCredentials creates the storage credential secret when the
// installer owns it. User-managed and claim-provided credentials are never
// written. Credentials come from explicit keys, then the operator credential
// cache, then the operator admin secret.
func (p *Provisioner) EnsureStorageCredentials(ctx context.Context, in StorageCredentialsInput) (Result, error) {
	name := p.names.Storage
	switch {
	case in.Skip:
		return Result{Name: name, Status: StatusSkipped, Detail: "storage setup disabled"}, nil
	case in.Storage == nil:
		return Result{Name: name, Status: StatusSkipped, Detail: "storage not resolved"}, nil
	case !in.Storage.ManagesCredentials():
		return Result{Name: name, Status: StatusSkipped, Detail: fmt.Sprintf("credentials are %s", in.Storage.CredentialSource)}, nil
	}

	_, found, err := p.client.GetSecret(ctx, p.namespace, name)
	if err != nil {
		return Result{Name: name}, outcome.Fatal(err)
	}
	if found {
		return Result{Name: name, Status: StatusExists}, nil
	}

	access, secret, origin, err := p.storageCredentialOrigin(ctx, in)
	if err != nil {
		return Result{Name: name}, err
	}

	res, err := p.create(ctx, name, labels.ComponentStorage, map[string][]byte{
		AccessKeyField: []byte(access),
		SecretKeyField: []byte(secret),
	})
	if err != nil {
		return res, outcome.Fatal(err, outcome.WithMissing("secret "+name))
	}
	res.Detail = "from " + origin
	return res, nil
}

func (p *Provisioner) storageCredentialOrigin(ctx context.Context, in StorageCredentialsInput) (access, secret, origin string, err error) {
	if in.AccessKey != "" && in.SecretKey != "" {
		return in.AccessKey, in.SecretKey, "environment", nil
	}

	cached, found, err := p.client.GetSecret(ctx, p.namespace, p.names.StorageOps)
	if err != nil {
		return "", "", "", outcome.Fatal(err)
	}
	if found && len(cached.Data[AccessKeyField]) > 0 && len(cached.Data[SecretKeyField]) > 0 {
		return string(cached.Data[AccessKeyField]), string(cached.Data[SecretKeyField]), p.names.StorageOps, nil
	}

	admin, found, err := p.client.GetSecret(ctx, probe.StorageOperatorNamespace, probe.StorageOperatorAdminSecret)
	if err == nil && found {
		access = string(admin.Data[operatorAccessKeyField])
		secret = string(admin.Data[operatorSecretKeyField])
	}
	if access == "" || secret == "" {
		return "", "", "", outcome.Fatal(fmt.Errorf("no storage credentials available"),
			outcome.WithStrategy(string(in.Storage.Strategy)),
			outcome.WithMissing("S3_ACCESS_KEY/S3_SECRET_KEY or "+probe.StorageOperatorNamespace+"/"+probe.StorageOperatorAdminSecret),
			outcome.WithRemediation("export S3_ACCESS_KEY and S3_SECRET_KEY, or set storage.existingSecret in the values file"))
	}

	// Cache next to the release for later runs.
	if _, err := p.create(ctx, p.names.StorageOps, labels.ComponentStorage, map[string][]byte{
		AccessKeyField: []byte(access),
		SecretKeyField: []byte(secret),
	}); err != nil {
		return "", "", "", outcome.Fatal(err, outcome.WithMissing("secret "+p.names.StorageOps))
	}
	return access, secret, probe.StorageOperatorNamespace + "/" + probe.StorageOperatorAdminSecret, nil
}

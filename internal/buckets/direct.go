package buckets

import (
	"context"
	"fmt"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/platform/s3"
)

// DirectExecutor creates buckets from the installer's own process.
type DirectExecutor struct {
	client    *kube.Client
	namespace string
}

// NewDirectExecutor creates a DirectExecutor.
func NewDirectExecutor(client *kube.Client, namespace string) *DirectExecutor {
	return &DirectExecutor{client: client, namespace: namespace}
}

// Name implements Executor.
func (e *DirectExecutor) Name() string { return "direct" }

// Run ensures each bucket with HeadBucket/CreateBucket.
func (e *DirectExecutor) Run(ctx context.Context, target Target) ([]BucketResult, error) {
	secret, found, err := e.client.GetSecret(ctx, e.namespace, target.CredentialsSecret)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("credential secret %s/%s not found", e.namespace, target.CredentialsSecret)
	}

	client, err := s3.NewClient(ctx, s3.Options{
		Endpoint:  target.Storage.URL(),
		Region:    target.Storage.Region,
		AccessKey: string(secret.Data[target.AccessKeyField]),
		SecretKey: string(secret.Data[target.SecretKeyField]),
		CABundle:  target.CABundle,
	})
	if err != nil {
		return nil, err
	}

	results := make([]BucketResult, 0, len(target.Buckets))
	for _, b := range target.Buckets {
		created, err := client.EnsureBucket(ctx, b)
		if err != nil {
			return results, err
		}
		status := BucketExists
		if created {
			status = BucketCreated
		}
		results = append(results, BucketResult{Name: b, Status: status})
	}
	return results, nil
}

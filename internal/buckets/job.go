package buckets

import (
	"context"
	"fmt"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/ptr"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/platform/s3"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/util/labels"
)

// DefaultJobImage runs the bucket loop.
const DefaultJobImage = "docker.io/amazon/aws-cli:2.17.0"

const (
	jobSuffix       = "-bucket-setup"
	jobBackoffLimit = int32(2)
	jobTTL          = int32(300)

	// jobUser replaces the image's root user off OpenShift, where no SCC
	// assigns one.
	jobUser = int64(1000)
)

// bucketScript checks each bucket and creates the missing ones.
const bucketScript = `set -eu
for b in $BUCKETS; do
  if aws s3api head-bucket --bucket "$b" --endpoint-url "$S3_ENDPOINT" $TLS_FLAGS >/dev/null 2>&1; then
    echo "exists $b"
  else
    aws s3api create-bucket --bucket "$b" --endpoint-url "$S3_ENDPOINT" $TLS_FLAGS >/dev/null
    echo "created $b"
  fi
done
`

// JobExecutor runs the bucket loop in a disposable in-cluster Job.
type JobExecutor struct {
	client    *kube.Client
	namespace string
	release   string

	Image        string
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewJobExecutor creates a JobExecutor.
func NewJobExecutor(client *kube.Client, namespace, release string, timeout time.Duration) *JobExecutor {
	return &JobExecutor{
		client:       client,
		namespace:    namespace,
		release:      release,
		Image:        DefaultJobImage,
		Timeout:      timeout,
		PollInterval: 2 * time.Second,
	}
}

// Name implements Executor.
func (e *JobExecutor) Name() string { return "job" }

// JobName returns the name of the bucket job.
func (e *JobExecutor) JobName() string { return e.release + jobSuffix }

// Run creates the Job, waits for it and always deletes it.
func (e *JobExecutor) Run(ctx context.Context, target Target) ([]BucketResult, error) {
	jobs := e.client.Clientset().BatchV1().Jobs(e.namespace)
	name := e.JobName()

	// A job left behind by an interrupted run would block the create.
	if err := e.delete(ctx); err != nil {
		return nil, err
	}

	if _, err := jobs.Create(ctx, e.buildJob(target), metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("failed to create job %s: %w", name, err)
	}
	defer func() {
		_ = e.delete(context.WithoutCancel(ctx))
	}()

	err := wait.PollUntilContextTimeout(ctx, e.PollInterval, e.Timeout, true, func(ctx context.Context) (bool, error) {
		job, err := jobs.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		if job.Status.Succeeded > 0 || hasCondition(job, batchv1.JobComplete) {
			return true, nil
		}
		if hasCondition(job, batchv1.JobFailed) || job.Status.Failed > jobBackoffLimit {
			return false, fmt.Errorf("job %s failed after %d attempts", name, job.Status.Failed)
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("bucket job did not complete: %w", err)
	}

	results := make([]BucketResult, 0, len(target.Buckets))
	for _, b := range target.Buckets {
		results = append(results, BucketResult{Name: b, Status: BucketEnsured})
	}
	return results, nil
}

func (e *JobExecutor) delete(ctx context.Context) error {
	err := e.client.Clientset().BatchV1().Jobs(e.namespace).Delete(ctx, e.JobName(), metav1.DeleteOptions{
		PropagationPolicy: ptr.To(metav1.DeletePropagationBackground),
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete job %s: %w", e.JobName(), err)
	}
	return nil
}

func (e *JobExecutor) buildJob(target Target) *batchv1.Job {
	s := target.Storage
	tlsFlags := ""
	if s.UseTLS {
		// Service certificates are signed by the cluster service CA, which
		// the CLI image does not trust.
		tlsFlags = "--no-verify-ssl"
	}
	region := s.Region
	if region == "" {
		region = s3.DefaultRegion
	}

	secretEnv := func(name, key string) corev1.EnvVar {
		return corev1.EnvVar{Name: name, ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: target.CredentialsSecret},
				Key:                  key,
			},
		}}
	}

	securityContext := &corev1.SecurityContext{
		AllowPrivilegeEscalation: ptr.To(false),
		RunAsNonRoot:             ptr.To(true),
		Capabilities:             &corev1.Capabilities{Drop: []corev1.Capability{"ALL"}},
		SeccompProfile:           &corev1.SeccompProfile{Type: corev1.SeccompProfileTypeRuntimeDefault},
	}
	if target.Platform != probe.PlatformOpenShift {
		securityContext.RunAsUser = ptr.To(jobUser)
		securityContext.RunAsGroup = ptr.To(jobUser)
	}

	jobLabels := labels.NewLabelBuilder(e.release).WithComponent(labels.ComponentBuckets).Build()
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      e.JobName(),
			Namespace: e.namespace,
			Labels:    jobLabels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To(jobBackoffLimit),
			TTLSecondsAfterFinished: ptr.To(jobTTL),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: jobLabels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:    "bucket-setup",
						Image:   e.Image,
						Command: []string{"/bin/sh", "-c", bucketScript},
						Env: []corev1.EnvVar{
							{Name: "S3_ENDPOINT", Value: s.URL()},
							{Name: "BUCKETS", Value: strings.Join(target.Buckets, " ")},
							{Name: "TLS_FLAGS", Value: tlsFlags},
							{Name: "AWS_DEFAULT_REGION", Value: region},
							{Name: "HOME", Value: "/tmp"},
							secretEnv("AWS_ACCESS_KEY_ID", target.AccessKeyField),
							secretEnv("AWS_SECRET_ACCESS_KEY", target.SecretKeyField),
						},
						SecurityContext: securityContext,
					}},
				},
			},
		},
	}
}

func hasCondition(job *batchv1.Job, t batchv1.JobConditionType) bool {
	for _, c := range job.Status.Conditions {
		if c.Type == t && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/util/netutil"
)

// Forwarder opens a port-forward to a pod. The returned stop function tears
// the forward down and is safe to call more than once.
type Forwarder interface {
	Forward(ctx context.Context, namespace, pod string, remotePort int) (localPort int, stop func(), err error)
}

// SPDYForwarder forwards ports over the API server's SPDY port-forward
// subresource.
type SPDYForwarder struct {
	client *kube.Client
}

// NewSPDYForwarder creates a SPDYForwarder.
func NewSPDYForwarder(client *kube.Client) *SPDYForwarder {
	return &SPDYForwarder{client: client}
}

// Forward binds an ephemeral port on 127.0.0.1 to remotePort of the pod.
func (f *SPDYForwarder) Forward(ctx context.Context, namespace, pod string, remotePort int) (int, func(), error) {
	transport, upgrader, err := spdy.RoundTripperFor(f.client.RESTConfig())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create SPDY transport: %w", err)
	}

	url := f.client.Clientset().CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod).
		SubResource("portforward").
		URL()
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, url)

	stopCh := make(chan struct{})
	readyCh := make(chan struct{})
	stop := sync.OnceFunc(func() { close(stopCh) })

	fw, err := portforward.NewOnAddresses(dialer, []string{"127.0.0.1"},
		[]string{fmt.Sprintf("0:%d", remotePort)}, stopCh, readyCh, io.Discard, io.Discard)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create port-forward: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- fw.ForwardPorts()
	}()

	select {
	case <-readyCh:
	case err := <-errCh:
		stop()
		return 0, nil, fmt.Errorf("port-forward to %s/%s failed: %w", namespace, pod, err)
	case <-ctx.Done():
		stop()
		return 0, nil, ctx.Err()
	}

	ports, err := fw.GetPorts()
	if err != nil {
		stop()
		return 0, nil, fmt.Errorf("failed to read forwarded ports: %w", err)
	}
	if len(ports) == 0 {
		stop()
		return 0, nil, fmt.Errorf("port-forward to %s/%s has no local port", namespace, pod)
	}
	local := int(ports[0].Local)

	if err := netutil.WaitForPort(ctx, "127.0.0.1", local, netutil.ForwardReadyTimeout); err != nil {
		stop()
		return 0, nil, err
	}
	return local, stop, nil
}

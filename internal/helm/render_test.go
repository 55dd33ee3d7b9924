package helm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/chart"

	"github.com/cost-onprem/installer/internal/config"
)

func testChart() *chart.Chart {
	return &chart.Chart{
		Metadata: &chart.Metadata{
			APIVersion: chart.APIVersionV2,
			Name:       "cost-onprem",
			Version:    "0.1.0",
			AppVersion: "1.0.0",
		},
		Values: map[string]any{
			"storage": map[string]any{"endpoint": "default.invalid", "port": 443},
		},
		Templates: []*chart.File{
			{Name: "templates/_helpers.tpl", Data: []byte(`{{- define "fullname" -}}{{ .Release.Name }}-api{{- end -}}`)},
			{Name: "templates/storage.yaml", Data: []byte(`apiVersion: v1
kind: ConfigMap
metadata:
  name: {{ .Release.Name }}-storage
  namespace: {{ .Release.Namespace }}
data:
  endpoint: {{ .Values.storage.endpoint | quote }}
  port: {{ .Values.storage.port | quote }}
`)},
			{Name: "templates/api.yaml", Data: []byte(`apiVersion: v1
kind: Service
metadata:
  name: {{ include "fullname" . }}
`)},
			{Name: "templates/empty.yaml", Data: []byte(`{{- if .Values.never }}never{{ end }}`)},
			{Name: "templates/NOTES.txt", Data: []byte(`Installed {{ .Release.Name }}`)},
		},
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "cost-onprem", "cost-onprem", nil)
	inv.Set("storage.endpoint", "ceph.local")

	out, err := Render(testChart(), inv)
	require.NoError(t, err)
	manifests := string(out)

	assert.Contains(t, manifests, `endpoint: "ceph.local"`)
	assert.Contains(t, manifests, `port: "443"`)
	assert.Contains(t, manifests, "namespace: cost-onprem")
	assert.Contains(t, manifests, "name: cost-onprem-api")
	assert.NotContains(t, manifests, "Installed")
	assert.NotContains(t, manifests, "empty.yaml")

	// Documents are ordered by template path.
	api := strings.Index(manifests, "# Source: cost-onprem/templates/api.yaml")
	storage := strings.Index(manifests, "# Source: cost-onprem/templates/storage.yaml")
	require.GreaterOrEqual(t, api, 0)
	require.GreaterOrEqual(t, storage, 0)
	assert.Less(t, api, storage)
	assert.Equal(t, 2, strings.Count(manifests, "---\n"))
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "cost-onprem", "cost-onprem", nil)
	inv.Set("storage.port", 80)

	first, err := Render(testChart(), inv)
	require.NoError(t, err)
	second, err := Render(testChart(), inv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_TemplateError(t *testing.T) {
	t.Parallel()

	ch := testChart()
	ch.Templates = append(ch.Templates, &chart.File{
		Name: "templates/broken.yaml",
		Data: []byte(`{{ required "kafka.bootstrapServers is required" .Values.kafka.bootstrapServers }}`),
	})

	_, err := Render(ch, NewInvocation(config.ChartSource{}, "cost-onprem", "cost-onprem", nil))
	require.Error(t, err)
}

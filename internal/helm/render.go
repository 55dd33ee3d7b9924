package helm

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
)

// Render renders the chart client-side with the invocation's values and
// returns the manifests as one multi-document YAML stream, ordered by
// template path.
func Render(ch *chart.Chart, inv *Invocation) ([]byte, error) {
	values, err := inv.Values()
	if err != nil {
		return nil, err
	}

	releaseOptions := chartutil.ReleaseOptions{
		Name:      inv.ReleaseName,
		Namespace: inv.Namespace,
		Revision:  1,
		IsInstall: true,
	}

	valuesToRender, err := chartutil.ToRenderValues(ch, values, releaseOptions, chartutil.DefaultCapabilities.Copy())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare values: %w", err)
	}

	rendered, err := engine.Engine{}.Render(ch, valuesToRender)
	if err != nil {
		return nil, fmt.Errorf("failed to render templates: %w", err)
	}

	names := make([]string, 0, len(rendered))
	for name := range rendered {
		names = append(names, name)
	}
	sort.Strings(names)

	var combined bytes.Buffer
	for _, name := range names {
		if filepath.Base(name) == "NOTES.txt" {
			continue
		}
		content := strings.TrimSpace(rendered[name])
		if content == "" {
			continue
		}
		fmt.Fprintf(&combined, "---\n# Source: %s\n%s\n", name, content)
	}

	return combined.Bytes(), nil
}

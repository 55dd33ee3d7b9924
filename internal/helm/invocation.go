package helm

import (
	"fmt"
	"strings"

	"helm.sh/helm/v3/pkg/strvals"

	"github.com/cost-onprem/installer/internal/config"
)

// Override is one key=value pair applied on top of the values file.
type Override struct {
	Key   string
	Value string

	// Raw overrides are parsed exactly like helm --set, so commas and
	// braces keep their list and multi-key meaning.
	Raw bool
}

// String returns the override in --set form.
func (o Override) String() string {
	return o.Key + "=" + o.Value
}

// Invocation is a complete, structured description of one chart deployment.
type Invocation struct {
	Chart       config.ChartSource
	ReleaseName string
	Namespace   string

	// Base holds the values file contents, if any.
	Base config.ValuesDocument

	// Overrides are applied in order; the last value for a key wins.
	Overrides []Override
}

// NewInvocation creates an Invocation for a release.
func NewInvocation(chart config.ChartSource, releaseName, namespace string, base config.ValuesDocument) *Invocation {
	return &Invocation{
		Chart:       chart,
		ReleaseName: releaseName,
		Namespace:   namespace,
		Base:        base,
	}
}

// Set appends an override. Values are formatted with fmt.Sprint.
func (inv *Invocation) Set(key string, value any) {
	inv.Overrides = append(inv.Overrides, Override{Key: key, Value: fmt.Sprint(value)})
}

// SetString appends an override only when value is non-empty.
func (inv *Invocation) SetString(key, value string) {
	if value == "" {
		return
	}
	inv.Set(key, value)
}

// AddRaw appends a pass-through override given as "key=value".
func (inv *Invocation) AddRaw(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid override %q (expected key=value)", kv)
	}
	inv.Overrides = append(inv.Overrides, Override{Key: key, Value: value, Raw: true})
	return nil
}

// Lookup returns the effective override for key.
func (inv *Invocation) Lookup(key string) (string, bool) {
	for i := len(inv.Overrides) - 1; i >= 0; i-- {
		if inv.Overrides[i].Key == key {
			return inv.Overrides[i].Value, true
		}
	}
	return "", false
}

// Keys returns the override keys in application order, duplicates included.
func (inv *Invocation) Keys() []string {
	keys := make([]string, 0, len(inv.Overrides))
	for _, o := range inv.Overrides {
		keys = append(keys, o.Key)
	}
	return keys
}

// Values merges the overrides into a copy of the base document.
func (inv *Invocation) Values() (map[string]any, error) {
	values := copyMap(inv.Base)
	for _, o := range inv.Overrides {
		kv := o.Key + "=" + escapeValue(o.Value)
		if o.Raw {
			kv = o.String()
		}
		if err := strvals.ParseInto(kv, values); err != nil {
			return nil, fmt.Errorf("failed to apply override %s: %w", o.Key, err)
		}
	}
	return values, nil
}

// escapeValue protects the separators strvals would otherwise split on.
func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, ",", `\,`)
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case config.ValuesDocument:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

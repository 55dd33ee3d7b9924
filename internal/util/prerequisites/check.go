// Package prerequisites checks for the client tools operators reach for
// when following the installer's remediation hints.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// ClientTools returns the tools named in remediation messages. The installer
// talks to the API server and Helm storage directly, so none are required.
func ClientTools() []Tool {
	return []Tool{
		{
			Name:        "kubectl",
			Description: "used in remediation hints to inspect pods and secrets",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
		},
		{
			Name:        "helm",
			Description: "used in remediation hints to inspect release history",
			InstallURL:  "https://helm.sh/docs/intro/install/",
		},
	}
}

// OpenShiftTools returns the additional tools useful on OpenShift.
func OpenShiftTools() []Tool {
	return []Tool{
		{
			Name:        "oc",
			Description: "used to log in and inspect routes on OpenShift",
			InstallURL:  "https://docs.openshift.com/container-platform/latest/cli_reference/openshift_cli/getting-started-cli.html",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check looks each tool up in PATH.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

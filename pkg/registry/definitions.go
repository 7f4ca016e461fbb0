package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Capability categories used by the built-in definition set.
const (
	CategoryData     = "data"
	CategoryAnalysis = "analysis"
	CategoryConfig   = "configuration"
	CategoryAccount  = "account"
	CategoryAdmin    = "admin"
)

// BuiltinDefinitions returns the capability definition set compiled into the
// binary. Deployments can extend or adjust it with a definition file, see
// LoadDefinitionFile.
func BuiltinDefinitions() []Descriptor {
	return []Descriptor{
		// Data access
		{Name: "list_datasets", DisplayName: "List Datasets", Description: "List datasets available to the caller", Category: CategoryData, RequiresAuth: true},
		{Name: "get_dataset", DisplayName: "Get Dataset", Description: "Fetch a single dataset with its metadata", Category: CategoryData, RequiresAuth: true},
		{Name: "query_dataset", DisplayName: "Query Dataset", Description: "Run a filtered query against a dataset", Category: CategoryData, RequiresAuth: true},
		{Name: "export_dataset", DisplayName: "Export Dataset", Description: "Export a dataset as CSV or JSON", Category: CategoryData, RequiresAuth: true},
		{Name: "upload_records", DisplayName: "Upload Records", Description: "Append records to a dataset", Category: CategoryData, RequiresAuth: true},

		// Analysis
		{Name: "summarize_dataset", DisplayName: "Summarize Dataset", Description: "Produce a statistical summary of a dataset", Category: CategoryAnalysis, RequiresAuth: true},
		{Name: "compare_datasets", DisplayName: "Compare Datasets", Description: "Compare two datasets column by column", Category: CategoryAnalysis, RequiresAuth: true},
		{Name: "detect_anomalies", DisplayName: "Detect Anomalies", Description: "Flag anomalous records in a dataset", Category: CategoryAnalysis, RequiresAuth: true},
		{Name: "trend_report", DisplayName: "Trend Report", Description: "Generate a trend report over a time window", Category: CategoryAnalysis, RequiresAuth: true},
		{Name: "forecast", DisplayName: "Forecast", Description: "Forecast a metric from historical records", Category: CategoryAnalysis, RequiresAuth: true},

		// Configuration (public: discoverable and callable without a credential)
		{Name: "get_capability_catalog", DisplayName: "Get Capability Catalog", Description: "Describe the capabilities this server exposes", Category: CategoryConfig},
		{Name: "get_server_info", DisplayName: "Get Server Info", Description: "Report server version and protocol revision", Category: CategoryConfig},
		{Name: "validate_query", DisplayName: "Validate Query", Description: "Validate query syntax without executing it", Category: CategoryConfig},

		// Account
		{Name: "get_profile", DisplayName: "Get Profile", Description: "Fetch the caller's profile", Category: CategoryAccount, RequiresAuth: true},
		{Name: "update_profile", DisplayName: "Update Profile", Description: "Update the caller's profile", Category: CategoryAccount, RequiresAuth: true},
		{Name: "list_api_keys", DisplayName: "List API Keys", Description: "List the caller's API keys", Category: CategoryAccount, RequiresAuth: true},

		// Admin (operator-only; never shown outside the admin tier)
		{Name: "view_audit_log", DisplayName: "View Audit Log", Description: "Read the tenant audit trail", Category: CategoryAdmin, AdminOnly: true, RequiresAuth: true},
		{Name: "purge_tenant_data", DisplayName: "Purge Tenant Data", Description: "Irreversibly delete a tenant's datasets", Category: CategoryAdmin, AdminOnly: true, RequiresAuth: true},
		{Name: "rotate_credentials", DisplayName: "Rotate Credentials", Description: "Rotate all credentials for a tenant", Category: CategoryAdmin, AdminOnly: true, RequiresAuth: true},
		{Name: "impersonate_user", DisplayName: "Impersonate User", Description: "Open a support session as another user", Category: CategoryAdmin, AdminOnly: true, RequiresAuth: true},
	}
}

// definitionFile is the on-disk shape of a capability definition overlay.
type definitionFile struct {
	Capabilities []Descriptor `yaml:"capabilities"`
}

// LoadDefinitionFile reads additional capability definitions from a YAML file.
// Entries with a name already present in base replace the built-in entry;
// new names are appended.
func LoadDefinitionFile(path string, base []Descriptor) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse definition file %s: %w", path, err)
	}

	merged := make([]Descriptor, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, d := range merged {
		index[d.Name] = i
	}

	for _, d := range file.Capabilities {
		if d.Name == "" {
			return nil, fmt.Errorf("definition file %s contains a capability with no name", path)
		}
		if i, ok := index[d.Name]; ok {
			merged[i] = d
		} else {
			index[d.Name] = len(merged)
			merged = append(merged, d)
		}
	}

	return merged, nil
}

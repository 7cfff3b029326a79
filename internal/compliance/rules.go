package compliance

import (
	"strings"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Finding is one flagged check on a resource.
type Finding struct {
	Control  string             `json:"control"`
	Message  string             `json:"message"`
	Severity resource.RiskLevel `json:"severity"`
}

// Finding messages produced by the built-in controls.
const (
	MsgUntagged            = "Resource is completely untagged"
	MsgMissingStandardTags = "Missing standard tags (Owner/CostCenter/Environment)"
	MsgBucketPublic        = "Storage bucket has public access enabled"
	MsgBucketUnencrypted   = "Storage bucket server-side encryption not enabled"
	MsgComputePublic       = "Compute instance exposed to public internet"
	MsgAdminPortsOpen      = "Critical ports (22/3389) open to all inbound traffic"
	MsgDatabaseUnencrypted = "Database storage is not encrypted at rest"
	MsgDashboardEnabled    = "Dashboard is enabled (high attack surface)"
	MsgRBACDisabled        = "RBAC is not enabled"
	MsgOutdatedTLS         = "Using outdated SSL policy (pre-TLS 1.2)"
)

// standardTags are the governance keys of which at least one must be set.
var standardTags = []string{"Owner", "CostCenter", "Environment"}

// check is one row of the built-in rule table.
type check struct {
	control   string
	appliesTo resource.Type // empty applies to every type
	severity  resource.RiskLevel
	message   string
	fires     func(r resource.Resource, m map[string]any) bool
}

// builtinChecks is evaluated top to bottom; the finding order follows it.
var builtinChecks = []check{
	{
		control:  "GOV-1",
		severity: resource.RiskLow,
		message:  MsgUntagged,
		fires: func(r resource.Resource, _ map[string]any) bool {
			return len(r.Tags) == 0
		},
	},
	{
		control:  "GOV-2",
		severity: resource.RiskLow,
		message:  MsgMissingStandardTags,
		fires: func(r resource.Resource, _ map[string]any) bool {
			if len(r.Tags) == 0 {
				return false
			}
			for _, key := range standardTags {
				if r.Tags[key] != "" {
					return false
				}
			}
			return true
		},
	},
	{
		control:   "CIS 2.1",
		appliesTo: resource.TypeBucket,
		severity:  resource.RiskCritical,
		message:   MsgBucketPublic,
		fires: func(_ resource.Resource, m map[string]any) bool {
			return isTrue(m, "publicAccess")
		},
	},
	{
		control:   "CIS 2.2",
		appliesTo: resource.TypeBucket,
		severity:  resource.RiskHigh,
		message:   MsgBucketUnencrypted,
		fires: func(_ resource.Resource, m map[string]any) bool {
			enc, _ := stringValue(m, "encryption")
			return enc != "AES256" && enc != "AWS-KMS"
		},
	},
	{
		control:   "CIS 4.1",
		appliesTo: resource.TypeCompute,
		severity:  resource.RiskHigh,
		message:   MsgComputePublic,
		fires: func(r resource.Resource, m map[string]any) bool {
			return truthy(m["publicIp"]) && !strings.Contains(r.Tags["Type"], "Bastion")
		},
	},
	{
		control:   "NET-1",
		appliesTo: resource.TypeCompute,
		severity:  resource.RiskHigh,
		message:   MsgAdminPortsOpen,
		fires: func(_ resource.Resource, m map[string]any) bool {
			return listContainsNumber(m, "openPorts", 22, 3389)
		},
	},
	{
		control:   "CIS 3.1",
		appliesTo: resource.TypeDatabase,
		severity:  resource.RiskHigh,
		message:   MsgDatabaseUnencrypted,
		fires: func(_ resource.Resource, m map[string]any) bool {
			return !isTrue(m, "storageEncrypted")
		},
	},
	{
		control:   "CIS 5.1",
		appliesTo: resource.TypeKubernetes,
		severity:  resource.RiskHigh,
		message:   MsgDashboardEnabled,
		fires: func(_ resource.Resource, m map[string]any) bool {
			return isTrue(m, "dashboardEnabled")
		},
	},
	{
		control:   "CIS 5.6",
		appliesTo: resource.TypeKubernetes,
		severity:  resource.RiskHigh,
		message:   MsgRBACDisabled,
		fires: func(_ resource.Resource, m map[string]any) bool {
			return isFalse(m, "rbacEnabled")
		},
	},
	{
		control:   "TLS-1",
		appliesTo: resource.TypeLoadBalancer,
		severity:  resource.RiskMedium,
		message:   MsgOutdatedTLS,
		fires: func(_ resource.Resource, m map[string]any) bool {
			scheme, _ := stringValue(m, "scheme")
			return scheme == "internet-facing" && stringContains(m, "sslPolicy", "2016")
		},
	},
}

// builtinFindings runs the rule table against r.
func builtinFindings(r resource.Resource) []Finding {
	m := r.Metadata
	if m == nil {
		m = map[string]any{}
	}

	var findings []Finding
	for _, c := range builtinChecks {
		if c.appliesTo != "" && c.appliesTo != r.Type {
			continue
		}
		if c.fires(r, m) {
			findings = append(findings, Finding{
				Control:  c.control,
				Message:  c.message,
				Severity: c.severity,
			})
		}
	}
	return findings
}

// Controls returns the identifiers of the built-in controls in evaluation order.
func Controls() []string {
	ids := make([]string, len(builtinChecks))
	for i, c := range builtinChecks {
		ids[i] = c.control
	}
	return ids
}

package models

import "strings"

// DefaultTenantKey is the partition used by transactions without a tenant and
// by the DEFAULT sentinel sent for unauthenticated requests.
const DefaultTenantKey = "DEFAULT"

// NormalizeTenant maps raw tenant values to a partition key. Missing, blank
// and "DEFAULT" values all land in the default partition; any other value is
// kept as-is after trimming surrounding whitespace.
func NormalizeTenant(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == DefaultTenantKey {
		return DefaultTenantKey
	}
	return trimmed
}

func IsDefaultTenant(tenantKey string) bool {
	return tenantKey == DefaultTenantKey
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TenantLabel renders a partition key the way log lines refer to it.
func TenantLabel(tenantKey string) string {
	if IsDefaultTenant(tenantKey) {
		return "default configuration"
	}
	return "tenant: " + tenantKey
}

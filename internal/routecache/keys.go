package routecache

import (
	"strings"

	"event-director/internal/constants"
	"event-director/pkg/models"
)

// DocumentKey is the key a document is cached under for txTp. Legacy
// documents without a tenant keep the bare transaction type; an explicit
// DEFAULT document gets its own tenant-style key so the two never overwrite
// each other.
func DocumentKey(doc models.NetworkMap, txTp string) string {
	if doc.IsLegacy() {
		return txTp
	}
	return tenantKey(strings.TrimSpace(doc.TenantID), txTp)
}

// LookupKeys lists, in priority order, the keys that may hold the document for
// a normalized tenant. The default partition prefers an explicit DEFAULT
// document over a legacy one.
func LookupKeys(tenant, txTp string) []string {
	if models.IsDefaultTenant(tenant) {
		return []string{tenantKey(models.DefaultTenantKey, txTp), txTp}
	}
	return []string{tenantKey(tenant, txTp)}
}

func tenantKey(tenant, txTp string) string {
	return constants.CacheKeyPrefixTenant + tenant + ":" + txTp
}

package models

// NetworkMap is the routing document for one tenant: for every transaction
// type it lists the typologies, and through them the rules, that must receive
// the transaction.
type NetworkMap struct {
	TenantID string         `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	Active   bool           `json:"active" bson:"active"`
	Cfg      string         `json:"cfg" bson:"cfg"`
	Messages []MessageRoute `json:"messages" bson:"messages"`
}

type MessageRoute struct {
	ID         string     `json:"id" bson:"id"`
	Cfg        string     `json:"cfg" bson:"cfg"`
	TxTp       string     `json:"txTp" bson:"txTp"`
	Typologies []Typology `json:"typologies" bson:"typologies"`
}

type Typology struct {
	ID    string `json:"id" bson:"id"`
	Cfg   string `json:"cfg" bson:"cfg"`
	Rules []Rule `json:"rules" bson:"rules"`
}

// Rule identifies one rule processor. Two rules are the same processor when
// both ID and Cfg match. Destination is persisted as "host".
type Rule struct {
	ID          string `json:"id" bson:"id"`
	Cfg         string `json:"cfg" bson:"cfg"`
	Destination string `json:"host,omitempty" bson:"host,omitempty"`
}

// Route returns the first message route serving txTp.
func (n NetworkMap) Route(txTp string) (MessageRoute, bool) {
	for _, m := range n.Messages {
		if m.TxTp == txTp {
			return m, true
		}
	}
	return MessageRoute{}, false
}

// Prune returns a copy of the document that only carries the route for txTp.
func (n NetworkMap) Prune(txTp string) (NetworkMap, bool) {
	route, ok := n.Route(txTp)
	if !ok {
		return NetworkMap{}, false
	}

	return NetworkMap{
		TenantID: n.TenantID,
		Active:   n.Active,
		Cfg:      n.Cfg,
		Messages: []MessageRoute{route},
	}, true
}

// TxTypes lists the transaction types the document serves, in document order
// and without repeats.
func (n NetworkMap) TxTypes() []string {
	seen := make(map[string]struct{}, len(n.Messages))
	types := make([]string, 0, len(n.Messages))

	for _, m := range n.Messages {
		if _, ok := seen[m.TxTp]; ok {
			continue
		}
		seen[m.TxTp] = struct{}{}
		types = append(types, m.TxTp)
	}

	return types
}

func (n NetworkMap) TenantKey() string {
	return NormalizeTenant(n.TenantID)
}

// IsLegacy reports whether the document predates tenancy and carries no
// tenant at all.
func (n NetworkMap) IsLegacy() bool {
	return isBlank(n.TenantID)
}

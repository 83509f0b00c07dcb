package models

import (
	"encoding/json"
	"fmt"
)

const ProcessingTimeKey = "prcgTmED"

// MetaData travels with a transaction across pipeline hops. Stages add keys,
// they never drop what upstream stages wrote.
type MetaData map[string]interface{}

// Merge returns a new map holding m overlaid with extra.
func (m MetaData) Merge(extra MetaData) MetaData {
	merged := make(MetaData, len(m)+len(extra))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// TransactionEnvelope is the inbound unit. The transaction body is kept as
// raw JSON; only the transaction type and tenant are decoded from it.
type TransactionEnvelope struct {
	Transaction json.RawMessage `json:"transaction"`
	DataCache   json.RawMessage `json:"DataCache,omitempty"`
	MetaData    MetaData        `json:"metaData,omitempty"`

	TxTp string `json:"-"`
	// TenantID is the raw tenant as sent; empty when the transaction carries
	// none.
	TenantID string `json:"-"`
	// HasTenant is false when neither TenantId nor tenantId was present.
	HasTenant bool `json:"-"`
}

type transactionHeader struct {
	TxTp         string          `json:"TxTp"`
	PascalTenant json.RawMessage `json:"TenantId"`
	CamelTenant  json.RawMessage `json:"tenantId"`
}

func (e *TransactionEnvelope) UnmarshalJSON(data []byte) error {
	var wire struct {
		Transaction json.RawMessage `json:"transaction"`
		DataCache   json.RawMessage `json:"DataCache"`
		MetaData    MetaData        `json:"metaData"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*e = TransactionEnvelope{
		Transaction: wire.Transaction,
		DataCache:   wire.DataCache,
		MetaData:    wire.MetaData,
	}

	if len(wire.Transaction) == 0 || string(wire.Transaction) == "null" {
		return nil
	}

	var header transactionHeader
	if err := json.Unmarshal(wire.Transaction, &header); err != nil {
		return fmt.Errorf("decode transaction header: %w", err)
	}

	e.TxTp = header.TxTp
	if tenant, ok := tenantString(header.PascalTenant); ok {
		e.TenantID, e.HasTenant = tenant, true
	} else if tenant, ok := tenantString(header.CamelTenant); ok {
		e.TenantID, e.HasTenant = tenant, true
	}

	return nil
}

// tenantString accepts only JSON strings; anything else counts as absent.
func tenantString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// TenantKey is the normalized partition key for the envelope's tenant.
func (e *TransactionEnvelope) TenantKey() string {
	return NormalizeTenant(e.TenantID)
}

// RuleMessage is what each rule processor receives.
type RuleMessage struct {
	Transaction json.RawMessage `json:"transaction"`
	NetworkMap  NetworkMap      `json:"networkMap"`
	DataCache   json.RawMessage `json:"DataCache,omitempty"`
	MetaData    MetaData        `json:"metaData"`
}

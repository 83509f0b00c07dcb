package models

import "encoding/json"

type TransactionEnvelopeBuilder struct {
	transaction map[string]interface{}
	dataCache   json.RawMessage
	metaData    MetaData
}

func NewTransactionEnvelopeBuilder(txTp string) *TransactionEnvelopeBuilder {
	return &TransactionEnvelopeBuilder{
		transaction: map[string]interface{}{"TxTp": txTp},
	}
}

func (b *TransactionEnvelopeBuilder) WithTenant(tenantID string) *TransactionEnvelopeBuilder {
	b.transaction["TenantId"] = tenantID
	return b
}

func (b *TransactionEnvelopeBuilder) WithField(name string, value interface{}) *TransactionEnvelopeBuilder {
	b.transaction[name] = value
	return b
}

func (b *TransactionEnvelopeBuilder) WithDataCache(raw json.RawMessage) *TransactionEnvelopeBuilder {
	b.dataCache = raw
	return b
}

func (b *TransactionEnvelopeBuilder) WithMetaData(metaData MetaData) *TransactionEnvelopeBuilder {
	b.metaData = metaData
	return b
}

// Build round-trips through JSON so the result looks exactly like a decoded
// inbound message.
func (b *TransactionEnvelopeBuilder) Build() (*TransactionEnvelope, error) {
	tx, err := json.Marshal(b.transaction)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(TransactionEnvelope{
		Transaction: tx,
		DataCache:   b.dataCache,
		MetaData:    b.metaData,
	})
	if err != nil {
		return nil, err
	}

	env := &TransactionEnvelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, err
	}
	return env, nil
}

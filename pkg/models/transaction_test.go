package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionEnvelopeUnmarshal(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		txTp       string
		tenant     string
		hasTenant  bool
		tenantKey  string
		wantErrStr string
	}{
		{
			name:      "pascal case tenant",
			payload:   `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"}}`,
			txTp:      "pacs.002.001.12",
			tenant:    "tenant-a",
			hasTenant: true,
			tenantKey: "tenant-a",
		},
		{
			name:      "camel case tenant",
			payload:   `{"transaction":{"TxTp":"pacs.008.001.10","tenantId":"tenant-b"}}`,
			txTp:      "pacs.008.001.10",
			tenant:    "tenant-b",
			hasTenant: true,
			tenantKey: "tenant-b",
		},
		{
			name:      "pascal case wins over camel case",
			payload:   `{"transaction":{"tenantId":"camel","TxTp":"pacs.008.001.10","TenantId":"pascal"}}`,
			txTp:      "pacs.008.001.10",
			tenant:    "pascal",
			hasTenant: true,
			tenantKey: "pascal",
		},
		{
			name:      "no tenant",
			payload:   `{"transaction":{"TxTp":"pacs.008.001.10"}}`,
			txTp:      "pacs.008.001.10",
			tenantKey: DefaultTenantKey,
		},
		{
			name:      "non string tenant is ignored",
			payload:   `{"transaction":{"TxTp":"pacs.008.001.10","TenantId":42}}`,
			txTp:      "pacs.008.001.10",
			tenantKey: DefaultTenantKey,
		},
		{
			name:      "sentinel tenant",
			payload:   `{"transaction":{"TxTp":"pacs.008.001.10","TenantId":"DEFAULT"}}`,
			txTp:      "pacs.008.001.10",
			tenant:    "DEFAULT",
			hasTenant: true,
			tenantKey: DefaultTenantKey,
		},
		{
			name:       "transaction is not an object",
			payload:    `{"transaction":"pacs"}`,
			wantErrStr: "decode transaction header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env TransactionEnvelope
			err := json.Unmarshal([]byte(tt.payload), &env)
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.txTp, env.TxTp)
			assert.Equal(t, tt.tenant, env.TenantID)
			assert.Equal(t, tt.hasTenant, env.HasTenant)
			assert.Equal(t, tt.tenantKey, env.TenantKey())
		})
	}
}

func TestTransactionEnvelopePassthrough(t *testing.T) {
	payload := `{"transaction":{"TxTp":"pacs.002.001.12","FIToFIPmtSts":{"GrpHdr":{"MsgId":"abc"}}},` +
		`"DataCache":{"dbtrId":"d1"},"metaData":{"traceParent":"00-1"}}`

	var env TransactionEnvelope
	require.NoError(t, json.Unmarshal([]byte(payload), &env))

	assert.JSONEq(t, `{"TxTp":"pacs.002.001.12","FIToFIPmtSts":{"GrpHdr":{"MsgId":"abc"}}}`, string(env.Transaction))
	assert.JSONEq(t, `{"dbtrId":"d1"}`, string(env.DataCache))
	assert.Equal(t, "00-1", env.MetaData["traceParent"])
}

func TestMetaDataMerge(t *testing.T) {
	upstream := MetaData{"prcgTmDP": 120, "traceParent": "00-1"}
	merged := upstream.Merge(MetaData{ProcessingTimeKey: int64(42)})

	assert.Equal(t, MetaData{"prcgTmDP": 120, "traceParent": "00-1", "prcgTmED": int64(42)}, merged)
	assert.Len(t, upstream, 2, "receiver is not modified")
	assert.Equal(t, MetaData{"a": 1}, MetaData(nil).Merge(MetaData{"a": 1}))
}

func TestValidateTransactionEnvelope(t *testing.T) {
	env, err := NewTransactionEnvelopeBuilder("pacs.008.001.10").WithTenant("tenant-a").Build()
	require.NoError(t, err)
	assert.NoError(t, ValidateTransactionEnvelope(env))

	noType, err := NewTransactionEnvelopeBuilder("").Build()
	require.NoError(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, ValidateTransactionEnvelope(noType), &vErr)
	assert.Equal(t, "transaction.TxTp", vErr.Field)

	require.ErrorAs(t, ValidateTransactionEnvelope(&TransactionEnvelope{}), &vErr)
	assert.Equal(t, "transaction", vErr.Field)
}

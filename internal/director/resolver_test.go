package director

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"event-director/pkg/models"
)

func rule(id, cfg string) models.Rule {
	return models.Rule{ID: id, Cfg: cfg}
}

func TestExtractRules(t *testing.T) {
	doc := models.NetworkMap{
		Active: true,
		Cfg:    "1.0.0",
		Messages: []models.MessageRoute{
			{
				ID:   "004@1.0.0",
				TxTp: "pacs.002.001.12",
				Typologies: []models.Typology{
					{ID: "typology-processor@1.0.0", Cfg: "028@1.0", Rules: []models.Rule{rule("001@1.0.0", "1.0.0"), rule("002@1.0.0", "1.0.0")}},
					{ID: "typology-processor@1.0.0", Cfg: "029@1.0", Rules: []models.Rule{rule("002@1.0.0", "1.0.0"), rule("003@1.0.0", "1.0.0")}},
				},
			},
			{
				ID:   "005@1.0.0",
				TxTp: "pacs.008.001.10",
				Typologies: []models.Typology{
					{ID: "typology-processor@1.0.0", Cfg: "030@1.0", Rules: []models.Rule{rule("001@1.0.0", "1.0.0"), rule("001@1.0.0", "2.0.0")}},
				},
			},
			{
				ID:   "006@1.0.0",
				TxTp: "pacs.008.001.10",
				Typologies: []models.Typology{
					{ID: "typology-processor@1.0.0", Cfg: "031@1.0", Rules: []models.Rule{rule("009@1.0.0", "1.0.0")}},
				},
			},
		},
	}

	tests := []struct {
		name string
		txTp string
		want []models.Rule
	}{
		{
			name: "duplicates across typologies kept once in first order",
			txTp: "pacs.002.001.12",
			want: []models.Rule{rule("001@1.0.0", "1.0.0"), rule("002@1.0.0", "1.0.0"), rule("003@1.0.0", "1.0.0")},
		},
		{
			name: "same id with different cfg is a different rule and first route wins",
			txTp: "pacs.008.001.10",
			want: []models.Rule{rule("001@1.0.0", "1.0.0"), rule("001@1.0.0", "2.0.0")},
		},
		{
			name: "unknown transaction type",
			txTp: "pain.001.001.11",
			want: []models.Rule{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractRules(doc, tt.txTp)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ExtractRules(doc, tt.txTp))
		})
	}
}

func TestExtractRules_EmptyDocument(t *testing.T) {
	assert.Empty(t, ExtractRules(models.NetworkMap{}, "pacs.002.001.12"))

	doc := models.NetworkMap{Messages: []models.MessageRoute{{TxTp: "pacs.002.001.12"}}}
	assert.Empty(t, ExtractRules(doc, "pacs.002.001.12"))
}

func TestExtractRules_ResultIsDistinct(t *testing.T) {
	var rules []models.Rule
	for i := 0; i < 50; i++ {
		rules = append(rules, rule("001@1.0.0", "1.0.0"), rule("002@1.0.0", "1.0.0"))
	}
	doc := models.NetworkMap{Messages: []models.MessageRoute{{
		TxTp:       "pacs.002.001.12",
		Typologies: []models.Typology{{Rules: rules[:50]}, {Rules: rules[50:]}},
	}}}

	got := ExtractRules(doc, "pacs.002.001.12")
	assert.Equal(t, []models.Rule{rule("001@1.0.0", "1.0.0"), rule("002@1.0.0", "1.0.0")}, got)
}

package director

import (
	"github.com/samber/lo"

	"event-director/pkg/models"
)

type ruleIdentity struct {
	id  string
	cfg string
}

// ExtractRules lists the rules that must receive a transaction of type txTp.
// Only the first route for txTp counts. Rules appearing in several
// typologies are kept once, at their first position.
func ExtractRules(doc models.NetworkMap, txTp string) []models.Rule {
	route, ok := lo.Find(doc.Messages, func(m models.MessageRoute) bool {
		return m.TxTp == txTp
	})
	if !ok {
		return []models.Rule{}
	}

	rules := lo.FlatMap(route.Typologies, func(t models.Typology, _ int) []models.Rule {
		return t.Rules
	})

	return lo.UniqBy(rules, func(r models.Rule) ruleIdentity {
		return ruleIdentity{id: r.ID, cfg: r.Cfg}
	})
}

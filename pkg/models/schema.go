package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateTransactionEnvelope(env *TransactionEnvelope) error {
	if env == nil {
		return &ValidationError{
			Field:   "envelope",
			Message: "transaction envelope cannot be nil",
		}
	}

	if len(env.Transaction) == 0 || string(env.Transaction) == "null" {
		return &ValidationError{
			Field:   "transaction",
			Message: "transaction is required",
		}
	}

	if env.TxTp == "" {
		return &ValidationError{
			Field:   "transaction.TxTp",
			Message: "transaction type is required",
		}
	}

	return nil
}

func ValidateNetworkMap(doc *NetworkMap) error {
	if doc == nil {
		return &ValidationError{Field: "networkMap", Message: "network map cannot be nil"}
	}

	for i, m := range doc.Messages {
		if m.TxTp == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].txTp", i),
				Message: "transaction type is required",
			}
		}
		for j, typology := range m.Typologies {
			for k, rule := range typology.Rules {
				if rule.ID == "" {
					return &ValidationError{
						Field:   fmt.Sprintf("messages[%d].typologies[%d].rules[%d].id", i, j, k),
						Message: "rule id is required",
					}
				}
			}
		}
	}

	return nil
}

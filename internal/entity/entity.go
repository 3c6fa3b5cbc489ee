// Package entity detects PII spans in text: a fixed regex+validator table,
// an NER variant backed by the inference engine, and a hybrid combination
// of both — spec.md §4.8.
package entity

import "context"

// Type classifies a detected entity. Generalizes the teacher's PIIType
// constants (internal/anonymizer.PIIType) to the spec's entity vocabulary.
type Type string

// Recognized entity types.
const (
	TypeCreditCard   Type = "credit_card"
	TypeIPv4         Type = "ipv4"
	TypeSSN          Type = "ssn"
	TypeBankAccount  Type = "bank_account"
	TypeEmail        Type = "email"
	TypePhone        Type = "phone"
	TypePerson       Type = "person"
	TypeOrganization Type = "organization"
	TypeLocation     Type = "location"
)

// Match is one detected entity span. Start/End are half-open byte offsets
// into the original text.
type Match struct {
	Type       Type
	Value      string
	Start, End int
	Confidence float32
}

// Detector is the contract every entity-detection backend implements.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Match, error)
}

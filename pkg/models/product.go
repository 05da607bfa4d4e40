package models

// ProductType classifies a financial product. The set is closed: every
// scoring path produces a value for each of the four types.
type ProductType string

const (
	ProductDeposit    ProductType = "deposit"
	ProductSavings    ProductType = "savings"
	ProductLoan       ProductType = "loan"
	ProductInvestment ProductType = "investment"
)

// ProductTypes lists all product types in catalog order.
var ProductTypes = []ProductType{ProductDeposit, ProductSavings, ProductLoan, ProductInvestment}

// Valid reports whether t is one of the four known product types.
func (t ProductType) Valid() bool {
	switch t {
	case ProductDeposit, ProductSavings, ProductLoan, ProductInvestment:
		return true
	}
	return false
}

// Product is one catalog entry eligible for recommendation. Immutable for
// the duration of a single ranking request.
type Product struct {
	ID            string      `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	Type          ProductType `json:"type" db:"type"`
	Bank          string      `json:"bank" db:"bank"`
	InterestRate  float64     `json:"interest_rate" db:"interest_rate"`
	RiskLevel     int         `json:"risk_level" db:"risk_level"` // 1-5
	MinimumAmount int64       `json:"minimum_amount" db:"minimum_amount"`
	Active        bool        `json:"active" db:"active"`
}

// ProductRef is the slim projection of a product stored inside interaction
// history entries and passed as "currently held" context.
type ProductRef struct {
	ID   string      `json:"id"`
	Type ProductType `json:"type"`
	Name string      `json:"name,omitempty"`
}

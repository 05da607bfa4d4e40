package models

import "encoding/json"

// The onboarding UI elicits goals, income ranges and age groups as Korean
// display labels. Scoring compares them by identity, so each label family is
// a closed enum with an explicit label mapping instead of raw strings. On the
// wire the label form is used, so the tags never leak into API payloads.

// Goal is the user's primary financial goal.
type Goal int

const (
	GoalUnknown Goal = iota
	GoalSafeSavings
	GoalInvestmentReturn
	GoalHomePurchase
	GoalRetirement
	GoalEmergencyFund
)

var goalLabels = map[Goal]string{
	GoalSafeSavings:      "안전한 저축",
	GoalInvestmentReturn: "투자 수익",
	GoalHomePurchase:     "내집 마련",
	GoalRetirement:       "노후 준비",
	GoalEmergencyFund:    "비상금 마련",
}

var goalByLabel = func() map[string]Goal {
	m := make(map[string]Goal, len(goalLabels))
	for g, label := range goalLabels {
		m[label] = g
	}
	return m
}()

// ParseGoal maps a display label to its goal tag. Unrecognized labels map to
// GoalUnknown; scoring treats that as an absent goal.
func ParseGoal(label string) Goal {
	return goalByLabel[label]
}

// Label returns the display label, or "" for GoalUnknown.
func (g Goal) Label() string {
	return goalLabels[g]
}

func (g Goal) IsSet() bool {
	return g != GoalUnknown
}

func (g Goal) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Label())
}

func (g *Goal) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*g = ParseGoal(label)
	return nil
}

// IncomeBracket is the user's self-reported income range.
type IncomeBracket int

const (
	IncomeUnknown IncomeBracket = iota
	IncomeLow
	IncomeMiddle
	IncomeHigh
)

var incomeCategories = map[IncomeBracket]string{
	IncomeLow:    "low",
	IncomeMiddle: "middle",
	IncomeHigh:   "high",
}

var incomeByCategory = func() map[string]IncomeBracket {
	m := make(map[string]IncomeBracket, len(incomeCategories))
	for b, c := range incomeCategories {
		m[c] = b
	}
	return m
}()

// Annual income floor per bracket in KRW, used for affordability checks.
var incomeFloors = map[IncomeBracket]int64{
	IncomeLow:    20_000_000,
	IncomeMiddle: 40_000_000,
	IncomeHigh:   70_000_000,
}

func ParseIncomeBracket(category string) IncomeBracket {
	return incomeByCategory[category]
}

func (b IncomeBracket) Category() string {
	return incomeCategories[b]
}

// Floor returns the lower bound of the bracket's annual income, or 0 when
// the bracket is unknown.
func (b IncomeBracket) Floor() int64 {
	return incomeFloors[b]
}

func (b IncomeBracket) IsSet() bool {
	return b != IncomeUnknown
}

func (b IncomeBracket) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Category())
}

func (b *IncomeBracket) UnmarshalJSON(data []byte) error {
	var category string
	if err := json.Unmarshal(data, &category); err != nil {
		return err
	}
	*b = ParseIncomeBracket(category)
	return nil
}

// AgeGroup is the user's age bracket as elicited during onboarding.
type AgeGroup string

const (
	AgeGroupUnknown AgeGroup = ""
	AgeGroup20s     AgeGroup = "20대"
	AgeGroup30s     AgeGroup = "30대"
	AgeGroup40s     AgeGroup = "40대"
	AgeGroup50s     AgeGroup = "50대"
	AgeGroup60Plus  AgeGroup = "60대 이상"
)

func (a AgeGroup) IsSet() bool {
	return a != AgeGroupUnknown
}

// RiskLevel is the 1-5 investment risk tolerance, 1 being most conservative.
type RiskLevel int

const (
	RiskMin     = 1
	RiskNeutral = 3
	RiskMax     = 5
)

var riskLevelNames = map[RiskLevel]string{
	1: "안정형",
	2: "안정추구형",
	3: "위험중립형",
	4: "적극투자형",
	5: "공격투자형",
}

// Clamped returns the level forced into [1,5]; out-of-range stored values
// degrade to the neutral default rather than failing.
func (r RiskLevel) Clamped() RiskLevel {
	if r < RiskMin || r > RiskMax {
		return RiskNeutral
	}
	return r
}

// Name returns the Korean investment-profile name for the level.
func (r RiskLevel) Name() string {
	return riskLevelNames[r.Clamped()]
}

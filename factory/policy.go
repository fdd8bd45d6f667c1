/*
Package factory provides JSON to Go loan policy conversion.

PURPOSE:
  Converts a JSON loan policy document into a library.LoanPolicy. This
  lets a library change its loan period, borrowing limit or fee schedule
  without a code change. Any field left out keeps the library's standard
  value, so "{}" is the default policy.

JSON SCHEMA:
  {
    "loan_days": 14,
    "borrow_limit": 5,
    "fees": {
      "grace_days": 7,
      "grace_rate": "0.50",
      "daily_rate": "1.00",
      "cap": "15.00"
    }
  }

  Money fields accept a JSON string or number.

KEY FEATURES:
  - Defaults from library.DefaultLoanPolicy
  - Rejects unknown fields
  - Validates ranges (positive loan period and limit, non-negative
    rates, positive cap)

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.LoadFile("loan-policy.json")
  svc := library.NewService(store, library.WithPolicy(policy))

SEE ALSO:
  - library/fees.go: LoanPolicy and FeeSchedule
  - config/config.go: LOAN_POLICY points at the document
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/library-engine/library"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a loan policy.
type PolicyJSON struct {
	LoanDays    *int     `json:"loan_days,omitempty" validate:"omitnil,gte=1,lte=365"`
	BorrowLimit *int     `json:"borrow_limit,omitempty" validate:"omitnil,gte=1,lte=100"`
	Fees        *FeeJSON `json:"fees,omitempty"`
}

// FeeJSON represents the late fee schedule.
type FeeJSON struct {
	GraceDays *int             `json:"grace_days,omitempty" validate:"omitnil,gte=0"`
	GraceRate *decimal.Decimal `json:"grace_rate,omitempty"`
	DailyRate *decimal.Decimal `json:"daily_rate,omitempty"`
	Cap       *decimal.Decimal `json:"cap,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to library.LoanPolicy.
type PolicyFactory struct {
	validate *validator.Validate
}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{validate: validator.New()}
}

// ParsePolicy parses a JSON string into a LoanPolicy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (library.LoanPolicy, error) {
	var pj PolicyJSON
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pj); err != nil {
		return library.LoanPolicy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}

	return f.FromJSON(pj)
}

// LoadFile reads and parses a policy document from disk.
func (f *PolicyFactory) LoadFile(path string) (library.LoanPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return library.LoanPolicy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return f.ParsePolicy(string(data))
}

// FromJSON converts PolicyJSON to a LoanPolicy, filling in defaults.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (library.LoanPolicy, error) {
	if err := f.validate.Struct(pj); err != nil {
		return library.LoanPolicy{}, fmt.Errorf("invalid loan policy: %w", err)
	}

	policy := library.DefaultLoanPolicy()
	if pj.LoanDays != nil {
		policy.LoanDays = *pj.LoanDays
	}
	if pj.BorrowLimit != nil {
		policy.BorrowLimit = *pj.BorrowLimit
	}

	if pj.Fees != nil {
		fees, err := parseFees(*pj.Fees, policy.Fees)
		if err != nil {
			return library.LoanPolicy{}, err
		}
		policy.Fees = fees
	}

	return policy, nil
}

// ToJSON converts a LoanPolicy to PolicyJSON with every field set.
func (f *PolicyFactory) ToJSON(policy library.LoanPolicy) PolicyJSON {
	loanDays := policy.LoanDays
	limit := policy.BorrowLimit
	graceDays := policy.Fees.GraceDays
	graceRate := policy.Fees.GraceRate
	dailyRate := policy.Fees.DailyRate
	feeCap := policy.Fees.Cap

	return PolicyJSON{
		LoanDays:    &loanDays,
		BorrowLimit: &limit,
		Fees: &FeeJSON{
			GraceDays: &graceDays,
			GraceRate: &graceRate,
			DailyRate: &dailyRate,
			Cap:       &feeCap,
		},
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseFees(fj FeeJSON, fees library.FeeSchedule) (library.FeeSchedule, error) {
	if fj.GraceDays != nil {
		fees.GraceDays = *fj.GraceDays
	}
	if fj.GraceRate != nil {
		if fj.GraceRate.IsNegative() {
			return fees, fmt.Errorf("invalid fee schedule: grace_rate must not be negative")
		}
		fees.GraceRate = *fj.GraceRate
	}
	if fj.DailyRate != nil {
		if fj.DailyRate.IsNegative() {
			return fees, fmt.Errorf("invalid fee schedule: daily_rate must not be negative")
		}
		fees.DailyRate = *fj.DailyRate
	}
	if fj.Cap != nil {
		if !fj.Cap.IsPositive() {
			return fees, fmt.Errorf("invalid fee schedule: cap must be greater than 0")
		}
		fees.Cap = *fj.Cap
	}
	return fees, nil
}

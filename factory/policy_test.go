package factory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
)

func TestParsePolicy_EmptyDocumentIsDefault(t *testing.T) {
	f := NewPolicyFactory()

	policy, err := f.ParsePolicy(`{}`)

	require.NoError(t, err)
	def := library.DefaultLoanPolicy()
	assert.Equal(t, def.LoanDays, policy.LoanDays)
	assert.Equal(t, def.BorrowLimit, policy.BorrowLimit)
	assert.True(t, def.Fees.Cap.Equal(policy.Fees.Cap))
	assert.True(t, def.Fees.GraceRate.Equal(policy.Fees.GraceRate))
}

func TestParsePolicy_Overrides(t *testing.T) {
	// GIVEN: A policy with a shorter loan and cheaper fees
	doc := `{
		"loan_days": 21,
		"borrow_limit": 3,
		"fees": {"grace_days": 3, "grace_rate": "0.25", "daily_rate": 0.75, "cap": "10"}
	}`

	// WHEN: Parsing
	policy, err := NewPolicyFactory().ParsePolicy(doc)

	// THEN: Every field is applied
	require.NoError(t, err)
	assert.Equal(t, 21, policy.LoanDays)
	assert.Equal(t, 3, policy.BorrowLimit)
	assert.Equal(t, 3, policy.Fees.GraceDays)
	assert.Equal(t, "0.25", policy.Fees.GraceRate.StringFixed(2))
	assert.Equal(t, "0.75", policy.Fees.DailyRate.StringFixed(2))
	assert.Equal(t, "10.00", policy.Fees.Cap.StringFixed(2))

	// 3 days at 0.25 + 2 days at 0.75
	assert.Equal(t, "2.25", policy.Fees.Fee(5).StringFixed(2))
}

func TestParsePolicy_PartialFeesKeepDefaults(t *testing.T) {
	policy, err := NewPolicyFactory().ParsePolicy(`{"fees": {"cap": "20.00"}}`)

	require.NoError(t, err)
	assert.Equal(t, "20.00", policy.Fees.Cap.StringFixed(2))
	assert.Equal(t, 7, policy.Fees.GraceDays)
	assert.Equal(t, "1.00", policy.Fees.DailyRate.StringFixed(2))
}

func TestParsePolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"loan_days": `},
		{"unknown field", `{"loan_period": 14}`},
		{"zero loan days", `{"loan_days": 0}`},
		{"negative limit", `{"borrow_limit": -1}`},
		{"negative grace days", `{"fees": {"grace_days": -1}}`},
		{"negative rate", `{"fees": {"daily_rate": "-1"}}`},
		{"zero cap", `{"fees": {"cap": "0"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicyFactory().ParsePolicy(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewPolicyFactory()
	want := library.DefaultLoanPolicy()
	want.LoanDays = 30

	data, err := json.Marshal(f.ToJSON(want))
	require.NoError(t, err)
	got, err := f.ParsePolicy(string(data))

	require.NoError(t, err)
	assert.Equal(t, 30, got.LoanDays)
	assert.True(t, want.Fees.Cap.Equal(got.Fees.Cap))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"borrow_limit": 2}`), 0o600))

	policy, err := NewPolicyFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, policy.BorrowLimit)

	_, err = NewPolicyFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"Groceries", CategoryGroceries, false},
		{"groceries", CategoryGroceries, false},
		{"  EATING OUT  ", CategoryEatingOut, false},
		{"Other", CategoryOther, false},
		{"Rent", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryTransfers.Valid())
	assert.False(t, Category("transfers").Valid())
	assert.False(t, Category("Utilities").Valid())
	assert.Len(t, CategoryNames(), 11)
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Date: "2024-01-01", Description: "Salary", Credit: Float(2500), Category: CategoryIncome},
		{Date: "2024-01-05", Description: "Grocery Store", Debit: Float(45.20), Category: CategoryGroceries},
		{Date: "2024-01-06", Description: "Market", Debit: Float(0.10), Category: CategoryGroceries},
		{Date: "2024-01-07", Description: "Bus", Debit: Float(0.20), Category: CategoryTransport},
		{Date: "2024-01-08", Description: "Adjustment", Category: CategoryOther},
	}

	s := Summarize(txs)

	assert.Equal(t, 2500.0, s.TotalIncome)
	assert.Equal(t, 45.5, s.TotalSpending)
	assert.Equal(t, 45.3, s.Spending(CategoryGroceries))
	assert.Equal(t, 0.2, s.Spending(CategoryTransport))
	assert.Equal(t, 0.0, s.Spending(CategoryHealth))
	assert.NotContains(t, s.SpendingByCategory, CategoryOther)
	assert.Equal(t, 2454.5, s.NetFlow())
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalIncome)
	assert.Zero(t, s.TotalSpending)
	assert.Empty(t, s.SpendingByCategory)
}

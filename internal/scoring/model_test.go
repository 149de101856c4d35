package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreOrdersRisk(t *testing.T) {
	risky := map[string]string{
		"Contract": "Month-to-month", "tenure": "1", "MonthlyCharges": "105",
		"PaymentMethod": "Electronic check", "SeniorCitizen": "1", "PaperlessBilling": "Yes",
		"OnlineSecurity": "No", "TechSupport": "No",
	}
	loyal := map[string]string{
		"Contract": "Two year", "tenure": "70", "MonthlyCharges": "25",
		"PaymentMethod": "Bank transfer (automatic)", "OnlineSecurity": "Yes",
		"TechSupport": "Yes", "Partner": "Yes", "Dependents": "Yes",
	}

	assert.Equal(t, RiskHigh, Level(Score(risky)))
	assert.Equal(t, RiskLow, Level(Score(loyal)))
	assert.Equal(t, Score(risky), Score(risky))
}

func TestScoreToleratesGarbage(t *testing.T) {
	p := Score(map[string]string{"tenure": "n/a", "MonthlyCharges": ""})
	assert.True(t, p > 0 && p < 1)
}

func TestLevelThresholds(t *testing.T) {
	assert.Equal(t, RiskHigh, Level(0.7))
	assert.Equal(t, RiskMedium, Level(0.6999))
	assert.Equal(t, RiskMedium, Level(0.4))
	assert.Equal(t, RiskLow, Level(0.3999))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{0.9, 0.71, 0.5, 0.1})
	assert.Equal(t, 4, s.TotalCustomers)
	assert.Equal(t, 2, s.HighRiskCount)
	assert.Equal(t, 1, s.MediumRiskCount)
	assert.Equal(t, 1, s.LowRiskCount)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(RequiredColumns, 1))
	assert.Error(t, Validate(RequiredColumns, 0))
	err := Validate([]string{"tenure", "Contract"}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MonthlyCharges")
	assert.NotContains(t, err.Error(), "tenure")
}

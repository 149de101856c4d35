// Package scoring is the churn model of the stand-in service: a fixed logistic
// score over the telecom customer columns.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spec-kit/telepredict/internal/domain"
)

// Risk levels.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Thresholds on the churn probability.
const (
	HighThreshold   = 0.7
	MediumThreshold = 0.4
)

// RequiredColumns must all be present in an uploaded dataset before it can be scored.
var RequiredColumns = []string{
	"SeniorCitizen", "Partner", "Dependents", "tenure",
	"OnlineSecurity", "OnlineBackup", "DeviceProtection", "TechSupport",
	"Contract", "PaperlessBilling", "PaymentMethod",
	"MonthlyCharges", "TotalCharges",
}

// MissingColumns lists required columns absent from columns, sorted.
func MissingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[strings.TrimSpace(c)] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

// Validate rejects datasets the model cannot score.
func Validate(columns []string, rows int) error {
	if rows == 0 {
		return fmt.Errorf("dataset has no rows")
	}
	if missing := MissingColumns(columns); len(missing) > 0 {
		return fmt.Errorf("Missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Score returns the churn probability of one customer record.
func Score(row map[string]string) float64 {
	z := -1.2
	if strings.EqualFold(row["Contract"], "Month-to-month") {
		z += 1.4
	}
	if tenure, ok := number(row["tenure"]); ok {
		z -= 0.045 * tenure
	}
	if charges, ok := number(row["MonthlyCharges"]); ok {
		z += 0.022 * (charges - 65)
	}
	if strings.Contains(strings.ToLower(row["PaymentMethod"]), "electronic check") {
		z += 0.6
	}
	if yes(row["SeniorCitizen"]) {
		z += 0.35
	}
	if yes(row["PaperlessBilling"]) {
		z += 0.3
	}
	for _, col := range []string{"OnlineSecurity", "TechSupport"} {
		if yes(row[col]) {
			z -= 0.5
		}
	}
	for _, col := range []string{"OnlineBackup", "DeviceProtection", "Partner", "Dependents"} {
		if yes(row[col]) {
			z -= 0.2
		}
	}
	p := 1 / (1 + math.Exp(-z))
	return math.Round(p*10000) / 10000
}

// Level buckets a probability.
func Level(p float64) string {
	switch {
	case p >= HighThreshold:
		return RiskHigh
	case p >= MediumThreshold:
		return RiskMedium
	}
	return RiskLow
}

// Summarize counts scores per bucket.
func Summarize(scores []float64) domain.PredictionSummary {
	s := domain.PredictionSummary{TotalCustomers: len(scores)}
	for _, p := range scores {
		switch Level(p) {
		case RiskHigh:
			s.HighRiskCount++
		case RiskMedium:
			s.MediumRiskCount++
		default:
			s.LowRiskCount++
		}
	}
	return s
}

func yes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "1", "true":
		return true
	}
	return false
}

func number(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

package alerts

import (
	"strconv"
	"strings"

	"github.com/hydrowatch/hydrowatch/internal/stats"
	"github.com/hydrowatch/hydrowatch/internal/store"
)

// evalCondition evaluates a rule condition string against a StationStatus.
//
// Supported expressions (field operator value):
//
//	mean > 5000
//	max >= 8000
//	min < 1
//	latest > 6000
//	observed_count < 100
//	imputed_count > 50
//	imputed_pct > 20
//	rejected_count > 10
//	state == fetch_failed
//	state == insufficient_data
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, st *store.StationStatus) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "state" {
		if op == "==" {
			return st.State == rhs, 0
		}
		return false, 0
	}

	v, ok := numericField(field, st)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the status. Statistics
// fields only fire when the station actually has valid statistics.
func numericField(field string, st *store.StationStatus) (float64, bool) {
	switch field {
	case "mean":
		return st.Summary.Mean, st.State == store.StateOK
	case "max":
		return st.Summary.Max, st.State == store.StateOK
	case "min":
		return st.Summary.Min, st.State == store.StateOK
	case "latest":
		latest, ok := stats.LatestObserved(st.Series)
		return latest.Value, ok
	case "observed_count":
		return float64(st.Summary.ObservedCount), true
	case "imputed_count":
		return float64(st.Summary.ImputedCount), true
	case "imputed_pct":
		total := st.Summary.ObservedCount + st.Summary.ImputedCount
		if total == 0 {
			return 0, false
		}
		return float64(st.Summary.ImputedCount) / float64(total) * 100, true
	case "rejected_count":
		return float64(st.Report.Rejected()), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}

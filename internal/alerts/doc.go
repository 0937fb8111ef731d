// Package alerts evaluates threshold rules against station statuses and
// delivers webhook notifications when rules fire or resolve.
//
// Rules are simple "field operator value" expressions over the computed
// statistics (mean, max, min, latest, observed_count, imputed_pct, …) plus
// "state == fetch_failed" style checks. A cooldown per rule+station pair
// suppresses repeat fires.
package alerts

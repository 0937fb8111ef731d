package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	StationCount      int    `json:"station_count"`
	OKCount           int    `json:"ok_count"`
	InsufficientCount int    `json:"insufficient_count"`
	FetchFailedCount  int    `json:"fetch_failed_count"`
	State             string `json:"state"`
}

// StationResponse is one station entry in GET /api/v1/stations or
// GET /api/v1/stations/{id}.
type StationResponse struct {
	StationID string `json:"station_id"`
	Name      string `json:"name,omitempty"`
	Site      string `json:"site"`
	State     string `json:"state"`

	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	MaxAt string  `json:"max_at,omitempty"` // RFC3339
	MinAt string  `json:"min_at,omitempty"` // RFC3339

	Latest   *float64 `json:"latest,omitempty"`
	LatestAt string   `json:"latest_at,omitempty"` // RFC3339

	ObservedCount int     `json:"observed_count"`
	ImputedCount  int     `json:"imputed_count"`
	ImputedPct    float64 `json:"imputed_pct"`
	RejectedCount int     `json:"rejected_count"`

	Error    string `json:"error,omitempty"`
	LastSeen string `json:"last_seen"` // RFC3339

	// Points is populated only on the single-station endpoint.
	Points []PointResponse `json:"points,omitempty"`
}

// PointResponse is one cleaned sample in a station's series.
type PointResponse struct {
	Timestamp string  `json:"timestamp"` // RFC3339
	Value     float64 `json:"value"`
	Origin    string  `json:"origin"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the WebSocket
// broadcast envelope's data field.
type SnapshotResponse struct {
	Stations    []StationResponse `json:"stations"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

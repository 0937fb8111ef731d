// Package api exposes the dashboard's REST surface over the station store.
//
// Endpoints (all GET, JSON unless noted):
//
//	/api/v1/health                       — pipeline state counts
//	/api/v1/stations                     — all live stations
//	/api/v1/stations/{id}                — one station, including its points
//	/api/v1/stations/{id}/hydrograph.png — chart rendered on demand
//	/api/v1/alerts                       — firing and recently resolved alerts
//	/api/v1/snapshot                     — full dump, also used by the
//	                                       WebSocket hub's broadcasts
package api

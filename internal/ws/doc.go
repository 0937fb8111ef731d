// Package ws streams pipeline results to dashboard clients over WebSocket.
// Clients connect to /ws/stream and receive a full station snapshot (the same
// payload as GET /api/v1/snapshot) once on connect and again on a fixed
// interval, plus an immediate per-station frame whenever the poll loop
// finishes a station's cycle. A ?stations=a,b query parameter scopes a client
// to a subset of stations. Slow clients whose send buffer fills up are
// disconnected rather than allowed to stall the fan-out.
package ws

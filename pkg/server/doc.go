// Package server is the preview server: an HTTP API that animates posted
// scripts and streams every snapshot to browsers as server-sent events.
//
// Each Session owns one typist. Sessions can be paused, resumed, restarted
// and reconfigured while they run. When a history store is configured the
// recorded runs are served under /api/runs.
package server

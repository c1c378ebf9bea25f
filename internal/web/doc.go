// Package web serves tagplayer's JSON API.
//
// Routes:
//
//	GET  /api/status        player state, session and last playback
//	GET  /api/devices       devices visible to the account
//	POST /api/device        {"device_id": "..."} target a device
//	POST /api/config        update credentials, persisted to the settings file
//	POST /api/config/clear  drop every stored credential
//	GET  /api/auth/url      start the authorization code flow
//	GET  /callback          finish it and store the refresh token
//	POST /api/tag           {"uri": "..."} inject a tap
//	POST /api/next          skip to the next track
//	POST /api/restart       restart the process
//	GET  /api/network       result of the last connectivity probe
//	GET  /api/logs          tail of the JSON log file (?lines=N&level=L)
//	GET  /metrics           Prometheus metrics
//
// Handlers never touch the API client directly. Work that needs it is
// submitted to the host loop through Executor and runs between ticks.
package web

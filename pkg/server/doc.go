// Package server provides the operator HTTP surface of warden.
//
// The admin server is a chi router exposing probes, metrics and a small
// JSON API over the containment controller:
//
//	GET    /healthz                 liveness
//	GET    /readyz                  readiness (store, confinement location)
//	GET    /version                 build information
//	GET    /metrics                 Prometheus metrics, when enabled
//	GET    /v1/confinements         confined subjects
//	POST   /v1/confinements         confine a subject, online or offline
//	GET    /v1/confinements/{id}    one confinement record
//	DELETE /v1/confinements/{id}    release a subject
//	GET    /v1/sessions             online subjects
//	POST   /v1/events               forwarded join, leave, move and action events
//
// Every request gets an X-Request-ID, its trace context extracted, an
// access log line and a request metric labelled by route pattern.
//
// Controller errors map to status codes: rejections of a request that
// conflicts with the current state answer 409 (404 for releasing a subject
// that is not confined) and store failures or a missing confinement
// location answer 503.
package server

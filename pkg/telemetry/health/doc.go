// Package health provides liveness and readiness checks for the admin
// server.
//
// Liveness only reports that the process runs. Readiness runs every
// registered component check concurrently, each bounded by a timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("store", health.StoreCheck(backend))
//	checker.RegisterCheck("location", health.LocationCheck(locations))
//
//	router.Get("/healthz", checker.LivenessHandler())
//	router.Get("/readyz", checker.ReadinessHandler())
//
// A failing check turns readiness "degraded" and the handler answers 503.
package health

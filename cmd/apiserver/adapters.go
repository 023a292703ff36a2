package main

import (
	"github.com/turtacn/KinKeep/internal/bootstrap"
	"github.com/turtacn/KinKeep/internal/interfaces/http/handlers"
)

// healthCheckers exposes the container's probes to the readiness handler.
func healthCheckers(checks []bootstrap.Check) []handlers.HealthChecker {
	out := make([]handlers.HealthChecker, 0, len(checks))
	for _, c := range checks {
		out = append(out, handlers.CheckFunc{Label: c.Name, Fn: c.Fn})
	}
	return out
}

// Package validation probes backing services at startup and refuses to boot
// when a service marked as required is unreachable.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/vibeai/backend/internal/logger"
	"go.uber.org/zap"
)

// Check probes one service
type Check func(ctx context.Context) error

// ServiceValidator handles validation of optional services
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]Check
	timeout          time.Duration
}

// NewServiceValidator creates a validator whose required set comes from
// VOTING_REQUIRE_<SERVICE> environment variables
func NewServiceValidator(checks map[string]Check) *ServiceValidator {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return &ServiceValidator{
		requiredServices: parseRequiredServices(names),
		checks:           checks,
		timeout:          10 * time.Second,
	}
}

// Required lists the services that must pass
func (sv *ServiceValidator) Required() []string {
	return sv.requiredServices
}

// ValidateServices runs every check. Failures of required services are
// returned; failures of optional ones are only logged.
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	names := make([]string, 0, len(sv.checks))
	for name := range sv.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		required := sv.isRequired(name)

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := sv.checks[name](timeoutCtx)
		cancel()

		switch {
		case err == nil:
			logger.Log.Info("Service validated", zap.String("service", name))
		case required:
			logger.Log.Error("Required service validation failed", zap.String("service", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("required service %q: %w", name, err))
		default:
			logger.Log.Warn("Optional service unavailable", zap.String("service", name), zap.Error(err))
		}
	}

	for _, name := range sv.requiredServices {
		if _, ok := sv.checks[name]; !ok {
			errs = append(errs, fmt.Errorf("required service %q is not configured", name))
		}
	}

	return errors.Join(errs...)
}

func (sv *ServiceValidator) isRequired(name string) bool {
	for _, r := range sv.requiredServices {
		if r == name {
			return true
		}
	}
	return false
}

// parseRequiredServices reads VOTING_REQUIRE_* for each known service and
// for the well-known ones that may not have a check registered
func parseRequiredServices(known []string) []string {
	candidates := append([]string{"database", "redis", "elasticsearch"}, known...)
	seen := make(map[string]bool)

	var required []string
	for _, service := range candidates {
		if seen[service] {
			continue
		}
		seen[service] = true

		envVar := fmt.Sprintf("VOTING_REQUIRE_%s", strings.ToUpper(service))
		if isTruthy(os.Getenv(envVar)) {
			required = append(required, service)
		}
	}
	return required
}

// isTruthy checks if a string value represents a truthy value
func isTruthy(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

package di

import (
	"fmt"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
)

// mergeGasLimits overlays configured limits on the built-in table. Keys are
// chain names in any case.
func mergeGasLimits(defaults map[entities.Chain]uint64, overrides map[string]uint64) (map[entities.Chain]uint64, error) {
	out := make(map[entities.Chain]uint64, len(defaults)+len(overrides))
	for c, limit := range defaults {
		out[c] = limit
	}
	for name, limit := range overrides {
		c, err := entities.ParseChain(name)
		if err != nil {
			return nil, fmt.Errorf("gas_limits.%s: %w", name, err)
		}
		if limit == 0 {
			return nil, fmt.Errorf("gas_limits.%s must be positive", name)
		}
		out[c] = limit
	}
	return out, nil
}

// mergeReferrers overlays configured referrer addresses on the built-in
// table, checking each against its chain's address format.
func mergeReferrers(defaults map[entities.Chain]string, overrides map[string]string) (map[entities.Chain]string, error) {
	out := make(map[entities.Chain]string, len(defaults)+len(overrides))
	for c, addr := range defaults {
		out[c] = addr
	}
	for name, addr := range overrides {
		c, err := entities.ParseChain(name)
		if err != nil {
			return nil, fmt.Errorf("referrer.addresses.%s: %w", name, err)
		}
		if _, err := entities.ParseAddress(c, addr); err != nil {
			return nil, fmt.Errorf("referrer.addresses.%s: %w", name, err)
		}
		out[c] = addr
	}
	return out, nil
}

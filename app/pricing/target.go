package pricing

import (
	"fmt"
	"regexp"
	"strings"
)

type TargetRule struct {
	Format        *regexp.Regexp
	RequireServer bool
	ServerFormat  *regexp.Regexp
}

// Rules holds the per-game target formats. Games without a rule are accepted
// unless Strict is set.
type Rules struct {
	Strict bool
	games  map[string]TargetRule
}

func DefaultRules(strict bool) *Rules {
	return &Rules{
		Strict: strict,
		games: map[string]TargetRule{
			"mobile-legends": {
				Format:        regexp.MustCompile(`^\d{5,15}$`),
				RequireServer: true,
				ServerFormat:  regexp.MustCompile(`^\d{4,5}$`),
			},
			"free-fire": {
				Format: regexp.MustCompile(`^\d{6,15}$`),
			},
			"pubg-mobile": {
				Format: regexp.MustCompile(`^\d{8,15}$`),
			},
			"genshin-impact": {
				Format:        regexp.MustCompile(`^\d{8,12}$`),
				RequireServer: true,
				ServerFormat:  regexp.MustCompile(`^(os_asia|os_eur|os_usa|os_cht)$`),
			},
		},
	}
}

func (r *Rules) ValidateTarget(provider, targetID, serverID string) error {
	rule, ok := r.games[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		if r.Strict {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
		}
		return nil
	}

	if !rule.Format.MatchString(targetID) {
		return ErrInvalidTarget
	}

	if rule.RequireServer {
		if serverID == "" {
			return ErrServerRequired
		}
		if rule.ServerFormat != nil && !rule.ServerFormat.MatchString(serverID) {
			return ErrInvalidServer
		}
	}

	return nil
}

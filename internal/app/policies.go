package app

import "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/ratelimit"

// Policies bundles the named rate-limit policies built from configuration.
type Policies struct {
	General           ratelimit.Policy
	Auth              ratelimit.Policy
	PasswordReset     ratelimit.Policy
	EmailVerification ratelimit.Policy
	API               ratelimit.Policy
}

// PoliciesFromConfig applies configuration overrides to the default policy
// set.
func PoliciesFromConfig(cfg *Config) Policies {
	p := Policies{
		General:           ratelimit.GeneralPolicy(),
		Auth:              ratelimit.AuthPolicy(),
		PasswordReset:     ratelimit.PasswordResetPolicy(),
		EmailVerification: ratelimit.EmailVerificationPolicy(),
		API:               ratelimit.APIPolicy(),
	}
	if cfg == nil {
		return p
	}
	p.General.Max, p.General.Window = cfg.RateLimitGeneralMax, cfg.RateLimitGeneralWindow
	p.Auth.Max, p.Auth.Window = cfg.RateLimitAuthMax, cfg.RateLimitAuthWindow
	p.PasswordReset.Max, p.PasswordReset.Window = cfg.RateLimitResetMax, cfg.RateLimitResetWindow
	p.EmailVerification.Max, p.EmailVerification.Window = cfg.RateLimitEmailVerifyMax, cfg.RateLimitEmailVerifyWindow
	p.API.Max, p.API.Window = cfg.RateLimitAPIMax, cfg.RateLimitAPIWindow
	return p
}

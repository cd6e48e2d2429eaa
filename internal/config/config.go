package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	// Local admin token verification. The secret is deployment-static;
	// it is never discovered from the login endpoint at request time.
	AdminJWTSecret string `envconfig:"AUTH_ADMIN_JWT_SECRET" required:"true"`
	AdminJWTIssuer string `envconfig:"AUTH_ADMIN_JWT_ISSUER" default:"paperbase"`

	// External identity provider introspection.
	ExternalAuthEnabled   bool   `envconfig:"AUTH_EXTERNAL_ENABLED" default:"false"`
	IntrospectionURL      string `envconfig:"AUTH_INTROSPECTION_URL" default:""`
	ExpectedIssuer        string `envconfig:"AUTH_EXPECTED_ISSUER" default:""`
	ExpectedAudience      string `envconfig:"AUTH_EXPECTED_AUDIENCE" default:""`
	ServiceToken          string `envconfig:"AUTH_SERVICE_TOKEN" default:""`
	ExternalProvider      string `envconfig:"AUTH_EXTERNAL_PROVIDER" default:"idp"`
	CacheTTLSeconds       int    `envconfig:"AUTH_CACHE_TTL_SECONDS" default:"300"`
	ClockSkewSeconds      int    `envconfig:"AUTH_CLOCK_SKEW_SECONDS" default:"60"`
	IntrospectionTimeoutS int    `envconfig:"AUTH_INTROSPECTION_TIMEOUT_SECONDS" default:"5"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

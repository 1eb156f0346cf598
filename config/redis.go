package config

import "strings"

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:""`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// RevocationConfig controls server-side sign-out.
type RevocationConfig struct {
	// Enabled records signed-out token ids in Redis so they stop resolving before expiry.
	Enabled bool   `env:"REVOCATION_ENABLED" envDefault:"false"`
	Prefix  string `env:"REVOCATION_PREFIX"  envDefault:"portal-gate:revoked:"`
}

// Sanitize restores the key prefix when blanked.
func (r *RevocationConfig) Sanitize() {
	r.Prefix = strings.TrimSpace(r.Prefix)
	if r.Prefix == "" {
		r.Prefix = "portal-gate:revoked:"
	}
}

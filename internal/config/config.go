package config

import (
	"time"

	"github.com/freightline/service-loads/pkg/config"
)

// RoutingConfig holds settings for the external routing service client.
type RoutingConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
}

// RecalcConfig holds the tunables of the route recalculation coordinator.
// The debounce window and resolve timeout are deliberately configuration,
// not constants.
type RecalcConfig struct {
	Debounce       time.Duration
	ResolveTimeout time.Duration
}

// ServiceConfig holds all configuration for the loads service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    config.DatabaseConfig
	KafkaConfig config.KafkaConfig
	RedisConfig config.RedisConfig
	Routing     RoutingConfig
	Recalc      RecalcConfig
}

// Load reads configuration from environment variables with the LOADS prefix.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("LOADS")
	if err != nil {
		return nil, err
	}

	v.SetDefault("db_name", "freightline_loads")
	v.SetDefault("routing_base_url", "https://routing.freightline.internal")
	v.SetDefault("routing_cache_ttl_seconds", 3600)
	v.SetDefault("recalc_debounce_ms", 500)
	v.SetDefault("recalc_resolve_timeout_ms", 10000)

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "service_port"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "db_name"),
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisConfig: config.LoadRedisConfig(v),
		Routing: RoutingConfig{
			BaseURL:  v.GetString("routing_base_url"),
			APIKey:   v.GetString("routing_api_key"),
			CacheTTL: time.Duration(v.GetInt("routing_cache_ttl_seconds")) * time.Second,
		},
		Recalc: RecalcConfig{
			Debounce:       time.Duration(v.GetInt("recalc_debounce_ms")) * time.Millisecond,
			ResolveTimeout: time.Duration(v.GetInt("recalc_resolve_timeout_ms")) * time.Millisecond,
		},
	}, nil
}

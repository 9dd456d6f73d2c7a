// Package config loads service configuration from environment variables via
// viper. Each service declares explicit config structs; no free-form option
// bags cross package boundaries.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load creates a viper instance bound to environment variables with the
// given prefix (e.g. prefix "LOADS" maps key "db.host" to LOADS_DB_HOST).
func Load(prefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// GetServicePort returns the listen address for the service, defaulting to :8080.
func GetServicePort(v *viper.Viper, key string) string {
	v.SetDefault(key, "8080")
	port := v.GetString(key)
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

// GetAppEnv returns the application environment, defaulting to development.
func GetAppEnv(v *viper.Viper) string {
	v.SetDefault("app_env", "development")
	return v.GetString("app_env")
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LoadDatabaseConfig reads database settings, taking the database name from
// the given key so services can share the other defaults.
func LoadDatabaseConfig(v *viper.Viper, dbNameKey string) DatabaseConfig {
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_sslmode", "disable")
	return DatabaseConfig{
		Host:     v.GetString("db_host"),
		Port:     v.GetString("db_port"),
		User:     v.GetString("db_user"),
		Password: v.GetString("db_password"),
		DBName:   v.GetString(dbNameKey),
		SSLMode:  v.GetString("db_sslmode"),
	}
}

// DSN returns the keyword/value connection string for gorm's postgres driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// DatabaseURL returns the URL form of the connection string.
func (c DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// KafkaConfig holds Kafka broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// LoadKafkaConfig reads Kafka settings.
func LoadKafkaConfig(v *viper.Viper) KafkaConfig {
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_group_prefix", "freightline.")
	return KafkaConfig{
		Brokers:     strings.Split(v.GetString("kafka_brokers"), ","),
		GroupPrefix: v.GetString("kafka_group_prefix"),
	}
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoadRedisConfig reads Redis settings.
func LoadRedisConfig(v *viper.Viper) RedisConfig {
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	return RedisConfig{
		Addr:     v.GetString("redis_addr"),
		Password: v.GetString("redis_password"),
		DB:       v.GetInt("redis_db"),
	}
}

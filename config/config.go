// config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Postgres      PostgresConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// PostgresConfiguration stores data for database connection
type PostgresConfiguration struct {
	URI          string
	QueryTimeout string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("postgres.uri", "postgres://localhost:5432/gatewarden")
	viper.SetDefault("postgres.queryTimeout", "3s")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.dialTimeout", "5s")
	viper.SetDefault("redis.readTimeout", "2s")
	viper.SetDefault("redis.writeTimeout", "2s")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("outbound.timeout", "10s")

	// Per key-class cache TTLs. Resources and grants change rarely relative
	// to request rate; rules change often enough to warrant a short window.
	viper.SetDefault("cache.maxKeys", 10000)
	viper.SetDefault("cache.sweepInterval", "30s")
	viper.SetDefault("cache.resourceTTL", "60s")
	viper.SetDefault("cache.rulesTTL", "5s")
	viper.SetDefault("cache.sessionTTL", "60s")
	viper.SetDefault("cache.grantTTL", "60s")
	viper.SetDefault("cache.retentionFlagTTL", "1h")

	viper.SetDefault("audit.backend", "postgres")
	viper.SetDefault("audit.batchSize", 100)
	viper.SetDefault("audit.flushInterval", "5s")
	viper.SetDefault("audit.maxBufferSize", 500)
	viper.SetDefault("audit.maxRetries", 3)
	viper.SetDefault("audit.retryBackoff", "1s")
	viper.SetDefault("audit.retryBackoffCap", "30s")
	viper.SetDefault("audit.writeTimeout", "5s")
	viper.SetDefault("audit.retentionDefaultOpen", true)

	viper.SetDefault("retention.sweepInterval", "3h")

	viper.SetDefault("gateway.challengePathPrefix", "/_gateway/challenge")
	viper.SetDefault("gateway.sessionCookie", "gw_session")

	viper.SetDefault("ratelimit.requests", 100)
	viper.SetDefault("ratelimit.window", "1m")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

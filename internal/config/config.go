package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Checkout CheckoutConfig
	Features FeatureFlags
	LogLevel string
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	// Requests per second allowed on checkout and coupon routes.
	RateLimit int
	RateBurst int
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	PaymentsTopic string
	ConsumerGroup string
}

type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
	// Consecutive failures before the breaker opens.
	BreakerFailures int
	BreakerCooldown time.Duration
}

type AuthConfig struct {
	AccessTokenSecret string
	CookieName        string
}

type CheckoutConfig struct {
	// Subtotal, in currency units, at or above which a reward coupon is issued.
	RewardThreshold    int
	RewardPercentage   int
	RewardValidity     time.Duration
	RecommendationSize int
	AnalyticsDays      int
}

type FeatureFlags struct {
	EnableOrderEvents   bool
	EnablePaymentEvents bool
	EnableFeaturedCache bool
	EnableMetrics       bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 5000),
			ReadTimeout:    time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout:   time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
			RequestTimeout: getEnvDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
			RateLimit:      getEnvInt("SERVER_RATE_LIMIT", 20),
			RateBurst:      getEnvInt("SERVER_RATE_BURST", 40),
		},
		Database: DatabaseConfig{
			Host:           getEnvString("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnvString("DB_USER", "acme"),
			Password:       getEnvString("DB_PASSWORD", "acme"),
			Name:           getEnvString("DB_NAME", "acme_storefront"),
			SSLMode:        getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnvString("DB_MIGRATIONS_PATH", "./migrations"),
		},
		Mongo: MongoConfig{
			URI:      getEnvString("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnvString("MONGO_DB_NAME", "storefront"),
			Timeout:  getEnvDuration("MONGO_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			PaymentsTopic: getEnvString("KAFKA_PAYMENTS_TOPIC", "storefront.payments"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "storefront-service"),
		},
		Stripe: StripeConfig{
			SecretKey:       getEnvString("STRIPE_SECRET_KEY", ""),
			Currency:        getEnvString("STRIPE_CURRENCY", "usd"),
			SuccessURL:      getEnvString("CHECKOUT_SUCCESS_URL", "http://localhost:5173/purchase-success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:       getEnvString("CHECKOUT_CANCEL_URL", "http://localhost:5173/purchase-cancel"),
			Timeout:         getEnvDuration("STRIPE_TIMEOUT", 10*time.Second),
			BreakerFailures: getEnvInt("STRIPE_BREAKER_FAILURES", 5),
			BreakerCooldown: getEnvDuration("STRIPE_BREAKER_COOLDOWN", 30*time.Second),
		},
		Auth: AuthConfig{
			AccessTokenSecret: getEnvString("ACCESS_TOKEN_SECRET", ""),
			CookieName:        getEnvString("ACCESS_TOKEN_COOKIE", "accessToken"),
		},
		Checkout: CheckoutConfig{
			RewardThreshold:    getEnvInt("CHECKOUT_REWARD_THRESHOLD", 200),
			RewardPercentage:   getEnvInt("CHECKOUT_REWARD_PERCENTAGE", 10),
			RewardValidity:     getEnvDuration("CHECKOUT_REWARD_VALIDITY", 30*24*time.Hour),
			RecommendationSize: getEnvInt("RECOMMENDATION_SIZE", 4),
			AnalyticsDays:      getEnvInt("ANALYTICS_DAYS", 7),
		},
		Features: FeatureFlags{
			EnableOrderEvents:   getEnvBool("FEATURE_ORDER_EVENTS", true),
			EnablePaymentEvents: getEnvBool("FEATURE_PAYMENT_EVENTS", false),
			EnableFeaturedCache: getEnvBool("FEATURE_FEATURED_CACHE", true),
			EnableMetrics:       getEnvBool("FEATURE_METRICS", true),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

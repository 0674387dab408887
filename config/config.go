// Package config holds the environment-based configuration for the
// checkout service.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type AppConfig struct {
	Http      HttpConfig
	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Jwt       JwtConfig
	Esewa     EsewaConfig
	Reconcile ReconcileConfig
	Tracing   TracingConfig
}

type HttpConfig struct {
	Addr string `env:"CHECKOUT_HTTP_ADDR" env-default:":8084"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `env:"DB_NAME" env-default:"checkoutdb"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
}

type KafkaConfig struct {
	Broker string `env:"KAFKA_BROKER" env-default:"localhost:9092"`
	Topic  string `env:"KAFKA_TOPIC" env-default:"payment_events"`
}

type JwtConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"your-secret-key-change-in-production"`
}

// EsewaConfig carries the gateway parameters. Field names on the wire are
// fixed by the processor and must match exactly.
type EsewaConfig struct {
	ProductCode string `env:"ESEWA_PRODUCT_CODE" env-default:"EPAYTEST"`
	SecretKey   string `env:"ESEWA_SECRET_KEY" env-default:"8gBm/:&EnhH.1/q"`
	PaymentURL  string `env:"ESEWA_PAYMENT_URL" env-default:"https://rc-epay.esewa.com.np/api/epay/main/v2/form"`
	StatusURL   string `env:"ESEWA_STATUS_URL" env-default:"https://rc.esewa.com.np/api/epay/transaction/status/"`
	SuccessURL  string `env:"ESEWA_SUCCESS_URL" env-default:"http://localhost:3000/payment/success"`
	FailureURL  string `env:"ESEWA_FAILURE_URL" env-default:"http://localhost:3000/payment/failure"`
}

type ReconcileConfig struct {
	// OptimisticFallback controls what an informative-but-unverifiable
	// callback resolves to: a generic success when true, uncertain when
	// false.
	OptimisticFallback bool `env:"RECONCILE_OPTIMISTIC_FALLBACK" env-default:"true"`
	TimeoutSeconds     int  `env:"RECONCILE_TIMEOUT_SECONDS" env-default:"15"`
}

type TracingConfig struct {
	JaegerEndpoint string `env:"JAEGER_ENDPOINT" env-default:"http://localhost:14268/api/traces"`
}

func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

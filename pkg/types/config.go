package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Cognito Auth
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieName     string `envconfig:"SESSION_COOKIE_NAME" default:"redblood_session"`
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// Avatars
	S3BucketName string `envconfig:"S3_BUCKET_NAME"`

	// Redis center cache, disabled when empty
	RedisURL          string `envconfig:"REDIS_URL"`
	CenterCacheTTLSec uint   `envconfig:"CENTER_CACHE_TTL_SEC" default:"300"`

	// Kafka domain events, logged only when no brokers are set
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	KafkaEventsTopic string   `envconfig:"KAFKA_EVENTS_TOPIC" default:"redblood.events"`
	KafkaGroupID     string   `envconfig:"KAFKA_GROUP_ID" default:"redblood-notify"`

	DefaultSearchRadiusKm float64 `envconfig:"DEFAULT_SEARCH_RADIUS_KM" default:"50"`
	DefaultListLimit      int     `envconfig:"DEFAULT_LIST_LIMIT" default:"20"`
	MaxListLimit          int     `envconfig:"MAX_LIST_LIMIT" default:"100"`
}

package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultStaticQris = "00020101021126610014COM.GO-JEK.WWW01189360091438225844470210G8225844470303UMI51440014ID.CO.QRIS.WWW0215ID10243639137310303UMI5204721053033605802ID5925WAGO SHOESPA CUCI SEPATU 6006SLEMAN61055529462070703A016304EFA8"

const (
	StoreDriverMySQL  = "mysql"
	StoreDriverSQLite = "sqlite"
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	Store     StoreConfig
	Redis     RedisConfig
	PubSub    PubSubConfig
	Telegram  TelegramConfig
	Webhook   WebhookConfig
	Checkout  CheckoutConfig
	Reconcile ReconcileConfig
	HTTP      HTTPConfig

	// SecretKey authenticates notification relays. SecretKeyBcrypt, when set,
	// is checked instead.
	SecretKey       string
	SecretKeyBcrypt string
}

type StoreConfig struct {
	Driver         string
	DBUser         string
	DBPassword     string
	DBHost         string
	DBPort         string
	DBName         string
	SQLiteDSN      string
	MongoURI       string
	MongoDatabase  string
	SkipMigrations bool
	Timeout        time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsJSON    string
	PaymentEventsTopic string
	CreateTopic        bool
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
}

type WebhookConfig struct {
	DefaultURL string
	Secret     string
}

type CheckoutConfig struct {
	StaticQris                string
	BankAccounts              map[string]string
	MinAmount                 int64
	MaxAmount                 int64
	BankTransferMinAmount     int64
	DisambiguationMaxAttempts int
	QRImageSize               int
}

type ReconcileConfig struct {
	Window      time.Duration
	SinkTimeout time.Duration
	NotifyMiss  bool
	DedupeTTL   time.Duration
	LockTTL     time.Duration
}

type HTTPConfig struct {
	CORSAllowedOrigins []string
	RateLimitEnabled   bool
	RateLimitMax       int64
	RateLimitWindow    time.Duration
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from the environment, after loading .env if present.
func Load() Config {
	_ = godotenv.Load()

	pubsubProject := envString("PUBSUB_PROJECT_ID", envString("GOOGLE_CLOUD_PROJECT", envString("GCP_PROJECT", "")))

	return Config{
		Port:     envString("PORT", "8080"),
		Env:      envString("GO_ENV", "development"),
		LogLevel: envString("LOG_LEVEL", "info"),
		Store: StoreConfig{
			Driver:         strings.ToLower(envString("STORE_DRIVER", StoreDriverMySQL)),
			DBUser:         envString("DB_USER", ""),
			DBPassword:     envString("DB_PASSWORD", ""),
			DBHost:         envString("DB_HOST", "127.0.0.1"),
			DBPort:         envString("DB_PORT", "3306"),
			DBName:         envString("DB_NAME", "qris"),
			SQLiteDSN:      envString("SQLITE_DSN", "./qris.db"),
			MongoURI:       envString("MONGODB_URI", ""),
			MongoDatabase:  envString("MONGODB_DATABASE", "qris"),
			SkipMigrations: envBool("SKIP_MIGRATIONS", false),
			Timeout:        secondsFromEnv("STORE_TIMEOUT_SECONDS", 5*time.Second),
		},
		Redis: RedisConfig{
			Address:  envString("REDIS_ADDRESS", ""),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       intFromEnv("REDIS_DB", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          pubsubProject,
			CredentialsJSON:    envString("PUBSUB_CREDENTIALS_JSON", ""),
			PaymentEventsTopic: envString("PAYMENT_EVENTS_TOPIC", ""),
			CreateTopic:        envBool("PUBSUB_CREATE_TOPIC", false),
		},
		Telegram: TelegramConfig{
			BotToken: envString("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   envString("TELEGRAM_CHAT_ID", ""),
			BaseURL:  envString("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		},
		Webhook: WebhookConfig{
			DefaultURL: envString("STORE_WEBHOOK_URL", ""),
			Secret:     envString("WEBHOOK_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			StaticQris:                envString("QRIS_STATIC_PAYLOAD", defaultStaticQris),
			BankAccounts:              parseBankAccounts(envString("BANK_ACCOUNTS", "bca=1234567890 a.n Wago Payment")),
			MinAmount:                 int64FromEnv("MIN_AMOUNT", 1000),
			MaxAmount:                 int64FromEnv("MAX_AMOUNT", 1000000),
			BankTransferMinAmount:     int64FromEnv("BANK_TRANSFER_MIN_AMOUNT", 100000),
			DisambiguationMaxAttempts: intFromEnv("DISAMBIGUATION_MAX_ATTEMPTS", 10),
			QRImageSize:               intFromEnv("QR_IMAGE_SIZE", 300),
		},
		Reconcile: ReconcileConfig{
			Window:      time.Duration(intFromEnv("RECONCILE_WINDOW_MINUTES", 60)) * time.Minute,
			SinkTimeout: secondsFromEnv("SINK_TIMEOUT_SECONDS", 10*time.Second),
			NotifyMiss:  envBool("RECONCILE_NOTIFY_MISS", true),
			DedupeTTL:   secondsFromEnv("DEDUPE_WINDOW_SECONDS", 0),
			LockTTL:     secondsFromEnv("RECONCILE_LOCK_TTL_SECONDS", 10*time.Second),
		},
		HTTP: HTTPConfig{
			CORSAllowedOrigins: SplitAndTrim(envString("CORS_ALLOWED_ORIGINS", "")),
			RateLimitEnabled:   envBool("RATE_LIMIT_ENABLED", false),
			RateLimitMax:       int64FromEnv("RATE_LIMIT_MAX_REQUESTS", 600),
			RateLimitWindow:    secondsFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60*time.Second),
		},
		SecretKey:       envString("SECRET_KEY", ""),
		SecretKeyBcrypt: envString("SECRET_KEY_BCRYPT", ""),
	}
}

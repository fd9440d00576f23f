package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Storage. An empty DatabaseURL selects the in-memory store.
	DatabaseURL string
	SslCertPath string

	// Completion service
	CompletionProvider string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ChatModel          string
	ChatTemperature    float64
	ChatMaxTokens      int
	GeminiAPIKey       string
	GenModel           string

	// Speech synthesis
	TTSModel string
	TTSVoice string
	TTSSpeed float64

	// Optional S3 cache for synthesized audio
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	SessionTokenSecret string
	AllowedOrigins     []string
	LogMode            string

	LeaderboardDefaultLimit int
	LeaderboardMaxLimit     int
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		DatabaseURL:             strings.TrimSpace(getEnv("DATABASE_URL", "")),
		SslCertPath:             getEnv("SSL_CERT_PATH", ""),
		CompletionProvider:      strings.ToLower(getEnv("COMPLETION_PROVIDER", "openai")),
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:           getEnv("OPENAI_BASE_URL", ""),
		ChatModel:               getEnv("CHAT_MODEL", "gpt-4"),
		ChatTemperature:         getEnvFloat("CHAT_TEMPERATURE", 0.8),
		ChatMaxTokens:           getEnvInt("CHAT_MAX_TOKENS", 500),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GenModel:                getEnv("GEN_MODEL", "gemini-1.5-flash"),
		TTSModel:                getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:                getEnv("TTS_VOICE", "onyx"),
		TTSSpeed:                getEnvFloat("TTS_SPEED", 0.92),
		AwsAccessKey:            getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:            getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:               getEnv("AWS_REGION", "us-east-2"),
		BucketName:              getEnv("BUCKET_NAME", ""),
		SessionTokenSecret:      getEnv("SESSION_TOKEN_SECRET", ""),
		AllowedOrigins:          getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogMode:                 getEnv("LOG_MODE", "dev"),
		LeaderboardDefaultLimit: getEnvInt("LEADERBOARD_DEFAULT_LIMIT", 10),
		LeaderboardMaxLimit:     getEnvInt("LEADERBOARD_MAX_LIMIT", 100),
	}

	if cfg.DatabaseURL == "" {
		log.Println("WARN: DATABASE_URL not set, sessions and leaderboard live in memory only")
	}
	if cfg.LeaderboardMaxLimit < cfg.LeaderboardDefaultLimit {
		cfg.LeaderboardMaxLimit = cfg.LeaderboardDefaultLimit
	}

	return cfg
}

// AudioCacheEnabled reports whether S3 credentials and a bucket are configured.
func (c *Config) AudioCacheEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a number, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

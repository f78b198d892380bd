package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	DB        DBConfig
	Redis     RedisConfig
	Archive   ArchiveConfig
	LLM       LLMConfig
	Quiz      QuizConfig
	Optimizer OptimizerConfig
	Ingest    IngestConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LoggerConfig struct {
	Env   string
	Level string
}

// DBConfig describes the optional question catalog store. An empty Host
// disables it.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig describes the optional session archive. An empty Address
// disables it.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

type ArchiveConfig struct {
	TTL     time.Duration
	Timeout time.Duration
}

type LLMConfig struct {
	Server  string
	Model   string
	Timeout time.Duration
}

func (c LLMConfig) Enabled() bool {
	return c.Server != "" && c.Model != ""
}

type QuizConfig struct {
	DefaultQuestionCount int
	SourceTimeout        time.Duration
	SessionRetention     time.Duration
	PurgeInterval        time.Duration
}

type OptimizerConfig struct {
	CorrectnessWeight float64
	TimeWeight        float64
	SlowAnswerSeconds float64
	Window            int
	Buckets           int
	UpCost            float64
	DownCost          float64
	TargetPerformance float64
	MemoSize          int
}

type IngestConfig struct {
	Concurrency int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("logger.env", "development")
	v.SetDefault("logger.level", "info")
	v.SetDefault("db.port", 1521)
	v.SetDefault("archive.ttl", "168h")
	v.SetDefault("archive.timeout", "2s")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("quiz.default_question_count", 10)
	v.SetDefault("quiz.source_timeout", "20s")
	v.SetDefault("quiz.session_retention", "1h")
	v.SetDefault("quiz.purge_interval", "5m")
	v.SetDefault("optimizer.correctness_weight", 0.7)
	v.SetDefault("optimizer.time_weight", 0.3)
	v.SetDefault("optimizer.slow_answer_seconds", 60.0)
	v.SetDefault("optimizer.window", 3)
	v.SetDefault("optimizer.buckets", 20)
	v.SetDefault("optimizer.up_cost", 0.10)
	v.SetDefault("optimizer.down_cost", 0.05)
	v.SetDefault("optimizer.target_performance", 0.7)
	v.SetDefault("optimizer.memo_size", 256)
	v.SetDefault("ingest.concurrency", 4)
}

// LoadConfig reads config.yaml from the working directory or ./config when
// present, then applies environment overrides (db.host -> DB_HOST). A .env
// file, if any, is loaded into the environment first.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Logger: LoggerConfig{
			Env:   v.GetString("logger.env"),
			Level: v.GetString("logger.level"),
		},
		DB: DBConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Archive: ArchiveConfig{
			TTL:     v.GetDuration("archive.ttl"),
			Timeout: v.GetDuration("archive.timeout"),
		},
		LLM: LLMConfig{
			Server:  v.GetString("llm.server"),
			Model:   v.GetString("llm.model"),
			Timeout: v.GetDuration("llm.timeout"),
		},
		Quiz: QuizConfig{
			DefaultQuestionCount: v.GetInt("quiz.default_question_count"),
			SourceTimeout:        v.GetDuration("quiz.source_timeout"),
			SessionRetention:     v.GetDuration("quiz.session_retention"),
			PurgeInterval:        v.GetDuration("quiz.purge_interval"),
		},
		Optimizer: OptimizerConfig{
			CorrectnessWeight: v.GetFloat64("optimizer.correctness_weight"),
			TimeWeight:        v.GetFloat64("optimizer.time_weight"),
			SlowAnswerSeconds: v.GetFloat64("optimizer.slow_answer_seconds"),
			Window:            v.GetInt("optimizer.window"),
			Buckets:           v.GetInt("optimizer.buckets"),
			UpCost:            v.GetFloat64("optimizer.up_cost"),
			DownCost:          v.GetFloat64("optimizer.down_cost"),
			TargetPerformance: v.GetFloat64("optimizer.target_performance"),
			MemoSize:          v.GetInt("optimizer.memo_size"),
		},
		Ingest: IngestConfig{
			Concurrency: v.GetInt("ingest.concurrency"),
		},
	}
}

func (c *Config) GetDSN() string {
	// Oracle DSN format: user/password@host:port/service
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.DBName,
	)
}

package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"8000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"30"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		MaxUploadSize   int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10 MiB
	} `envPrefix:"SERVER_"`
	Task struct {
		DataDir        string  `env:"DATA_DIR" envDefault:"data"`
		PopulationSize int     `env:"POPULATION_SIZE" envDefault:"300"`
		CrossoverRate  float64 `env:"CROSSOVER_RATE" envDefault:"0.5"`
		MutationRate   float64 `env:"MUTATION_RATE" envDefault:"0.2"`
		GeneMutateRate float64 `env:"GENE_MUTATE_RATE" envDefault:"0.2"`
		TournamentSize int     `env:"TOURNAMENT_SIZE" envDefault:"3"`
		Workers        int     `env:"WORKERS" envDefault:"0"` // 0 表示使用 CPU 核数
		MaxGenerations int     `env:"MAX_GENERATIONS" envDefault:"100000"`
	} `envPrefix:"TASK_"`
	Store struct {
		Driver string `env:"DRIVER" envDefault:"file"` // file 或 postgres
	} `envPrefix:"STORE_"`
	Database struct {
		DSN                string `env:"DSN"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"30"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	Redis struct {
		Enabled             bool   `env:"ENABLED" envDefault:"false"`
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		LeaseExpiration     int    `env:"LEASE_EXPIRATION" envDefault:"86400"` // 1 天
	} `envPrefix:"REDIS_"`
	RabbitMQ struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		DSN            string `env:"DSN"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Email struct {
		NotifyTo string `env:"NOTIFY_TO"`
		SMTP     struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	Auth struct {
		Enabled  bool   `env:"ENABLED" envDefault:"false"`
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD"`
	} `envPrefix:"AUTH_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，14 天
		Secret     string `env:"SECRET"`
	} `envPrefix:"JWT_"`
	Metrics struct {
		Enabled   bool   `env:"ENABLED" envDefault:"true"`
		Namespace string `env:"NAMESPACE" envDefault:"team_balancer"`
	} `envPrefix:"METRICS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 检查那些只在开启某项功能时才是必填的配置
func (cfg *Config) validate() error {
	if cfg.Store.Driver != "file" && cfg.Store.Driver != "postgres" {
		return errors.New("STORE_DRIVER 只能是 file 或 postgres")
	}
	if cfg.Store.Driver == "postgres" && cfg.Database.DSN == "" {
		return errors.New("使用 postgres 存储结果时必须设置 DATABASE_DSN")
	}
	if cfg.RabbitMQ.Enabled && cfg.RabbitMQ.DSN == "" {
		return errors.New("开启通知时必须设置 RABBITMQ_DSN")
	}
	if cfg.Auth.Enabled && (cfg.Auth.Password == "" || cfg.JWT.Secret == "") {
		return errors.New("开启认证时必须设置 AUTH_PASSWORD 和 JWT_SECRET")
	}
	return nil
}

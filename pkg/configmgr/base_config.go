package configmgr

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLoggingConfig() *LoggingConfig
	GetBatchConfig() *BatchConfig
	GetDatabaseConfig() *DatabaseConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for a batching application and is expected to be in the following YAML format:
/*
name: "loader"
environment: "development"
version: "1.0"
logging:
  level: "debug"
batch:
  maxBytes: 1000000
  maxStatements: 0
  delimiter: ";"
  dryRun: false
database:
  driver: "postgres"
  host: "localhost"
  port: 5432
  dbName: "warehouse"
  user: "loader"
  password: "secret"
  maxConn: 4
  maxQuerySize: 1000000
*/
type BaseConfig struct {
	Name        string          `mapstructure:"name"`
	Environment string          `mapstructure:"environment"`
	Version     string          `mapstructure:"version"`
	Logging     *LoggingConfig  `mapstructure:"logging"`
	Batch       *BatchConfig    `mapstructure:"batch"`
	Database    *DatabaseConfig `mapstructure:"database"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// BatchConfig - construction-time batcher settings. Zero limits mean unbounded.
type BatchConfig struct {
	MaxBytes      int    `mapstructure:"maxBytes" validate:"gte=0"`
	MaxStatements int    `mapstructure:"maxStatements" validate:"gte=0"`
	Delimiter     string `mapstructure:"delimiter"`
	DryRun        bool   `mapstructure:"dryRun"`
}

// DatabaseConfig - backend connection settings consumed by the adapter constructors.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int32  `mapstructure:"port"`
	DBName       string `mapstructure:"dbName"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	MaxConn      int32  `mapstructure:"maxConn" validate:"gte=0"`
	MaxQuerySize int    `mapstructure:"maxQuerySize" validate:"gte=0"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	return cfg.Logging
}

func (cfg BaseConfig) GetBatchConfig() *BatchConfig {
	return cfg.Batch
}

func (cfg BaseConfig) GetDatabaseConfig() *DatabaseConfig {
	return cfg.Database
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	FraudAlert string `mapstructure:"fraud_alert"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug / info / warn / error
	Format string `mapstructure:"format"` // json / text
}

type BusinessConfig struct {
	MaxRetryCount            int    `mapstructure:"max_retry_count"`
	MemberLockSeconds        int    `mapstructure:"member_lock_seconds"`
	BackfillIntervalSeconds  int    `mapstructure:"backfill_interval_seconds"`
	BackfillDelaySeconds     int    `mapstructure:"backfill_delay_seconds"`
	DashboardCacheTTLSeconds int    `mapstructure:"dashboard_cache_ttl_seconds"`
	Timezone                 string `mapstructure:"timezone"` // 日累计限额按该时区的零点切分
}

// MemberLockTTL 会员锁过期时间
func (b BusinessConfig) MemberLockTTL() time.Duration {
	return time.Duration(b.MemberLockSeconds) * time.Second
}

func (b BusinessConfig) BackfillInterval() time.Duration {
	return time.Duration(b.BackfillIntervalSeconds) * time.Second
}

func (b BusinessConfig) BackfillDelay() time.Duration {
	return time.Duration(b.BackfillDelaySeconds) * time.Second
}

func (b BusinessConfig) DashboardCacheTTL() time.Duration {
	return time.Duration(b.DashboardCacheTTLSeconds) * time.Second
}

// Location 解析业务时区，未配置时使用本地时区
func (b BusinessConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(b.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.auto_migrate", true)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.topic.fraud_alert", "sacco.fraud_alert")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.member_lock_seconds", 30)
	v.SetDefault("business.backfill_interval_seconds", 60)
	v.SetDefault("business.backfill_delay_seconds", 120)
	v.SetDefault("business.dashboard_cache_ttl_seconds", 30)
	v.SetDefault("business.timezone", "Africa/Nairobi")
}

// LoadConfig 加载配置文件
// 环境变量优先级高于配置文件，例如 SACCO_MYSQL_PASSWORD 覆盖 mysql.password
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SACCO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if _, err := cfg.Business.Location(); err != nil {
		return nil, fmt.Errorf("时区配置无效: %w", err)
	}

	return cfg, nil
}

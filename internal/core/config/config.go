package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string // development / production / test
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string // 为空则只输出到 stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	LeewaySec         int
}

type Redis struct {
	Addr       string `mapstructure:"addr"` // 为空则不启用用户缓存
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	UserTTLSec int    `mapstructure:"user_ttl_sec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
	SlowQueryMs        int
}

type Security struct {
	BcryptCost    int `mapstructure:"bcrypt_cost"`
	HashWorkers   int `mapstructure:"hash_workers"` // 0 = GOMAXPROCS
	ChangeSkewSec int `mapstructure:"change_skew_sec"`
}

type Reset struct {
	TokenTTLMin int    `mapstructure:"token_ttl_min"`
	URLBase     string `mapstructure:"url_base"` // 邮件中的链接前缀
}

type Mail struct {
	Driver     string // smtp / log
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string `mapstructure:"from_name"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Security Security
	Reset    Reset
	Mail     Mail
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTLMin) * time.Minute
}

func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.Reset.TokenTTLMin) * time.Minute
}

func (c *Config) ChangeSkew() time.Duration {
	return time.Duration(c.Security.ChangeSkewSec) * time.Second
}

func (c *Config) IsDevelopment() bool { return c.App.Env == "development" }

// Validate 启动前检查；bcrypt cost 过低属于安全问题而不是性能优化
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		errs = append(errs, errors.New("jwt.accesstokenttlmin must be positive"))
	}
	if c.Reset.TokenTTLMin <= 0 {
		errs = append(errs, errors.New("reset.token_ttl_min must be positive"))
	}
	if c.Security.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("security.bcrypt_cost must be <= %d", bcrypt.MaxCost))
	}
	if c.App.Env != "test" && c.Security.BcryptCost < bcrypt.DefaultCost {
		errs = append(errs, fmt.Errorf("security.bcrypt_cost must be >= %d", bcrypt.DefaultCost))
	}
	if c.Security.ChangeSkewSec < 0 {
		errs = append(errs, errors.New("security.change_skew_sec must not be negative"))
	}
	switch c.Mail.Driver {
	case "log":
		// 生产环境只写日志等于静默丢弃重置邮件
		if c.App.Env == "production" {
			errs = append(errs, errors.New("mail.driver log is not allowed in production, configure smtp"))
		}
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, errors.New("mail.host and mail.from are required for smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported mail.driver %q", c.Mail.Driver))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "instantclip")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 5858)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 5859)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 7)
	v.SetDefault("log.maxagedays", 30)
	v.SetDefault("jwt.issuer", "instantclip")
	v.SetDefault("jwt.accesstokenttlmin", 90*24*60)
	v.SetDefault("jwt.leewaysec", 0)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxopenconns", 50)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.loglevel", "warn")
	v.SetDefault("db.slowqueryms", 200)
	v.SetDefault("redis.user_ttl_sec", 15)
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.hash_workers", 0)
	v.SetDefault("security.change_skew_sec", 1)
	v.SetDefault("reset.token_ttl_min", 10)
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from_name", "Instantclip")
	v.SetDefault("mail.timeout_sec", 10)
}

// Read 读取并校验配置；path 为空时依次尝试 CONFIG_PATH 与默认路径
func Read(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}

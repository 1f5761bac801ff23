package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		Media      MediaConfig
		Activity   ActivityConfig
		Enrollment EnrollmentConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx (jackc/pgx stdlib)
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Debug         bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		CacheTTL time.Duration
		// Sequencer makes Redis allocate student identifiers instead of the database.
		Sequencer bool
	}

	MediaConfig struct {
		Dir           string
		BaseURL       string
		MaxUploadSize int64
	}

	ActivityConfig struct {
		BufferSize int
		Workers    int
	}

	EnrollmentConfig struct {
		NotifyTimeout time.Duration
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

// NewConfig loads the configuration for the current ENV from the environment,
// after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	setDefaults(v, env, wd)

	return &Config{
		AppName:          v.GetString("app_name"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		SecretKey:        v.GetString("secret_key"),
		WorkDir:          v.GetString("work_dir"),
		FrontendBaseURL:  v.GetString("frontend_base_url"),
		RollbarToken:     v.GetString("rollbar_token"),
		SendgridApiKey:   v.GetString("sendgrid_api_key"),
		defaultFromEmail: v.GetString("default_from_email"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debug_host"),
			ReadTimeout:               v.GetDuration("server_read_timeout"),
			WriteTimeout:              v.GetDuration("server_write_timeout"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
			DisableReqLogs:            v.GetBool("server_disable_req_logs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetInt("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
			Debug:         v.GetBool("db_debug"),
			MaxOpenConns:  v.GetInt("db_max_open_conns"),
			MaxIdleConns:  v.GetInt("db_max_idle_conns"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis_addr"),
			Password:  v.GetString("redis_password"),
			DB:        v.GetInt("redis_db"),
			CacheTTL:  v.GetDuration("redis_cache_ttl"),
			Sequencer: v.GetBool("redis_sequencer"),
		},
		Media: MediaConfig{
			Dir:           v.GetString("media_dir"),
			BaseURL:       v.GetString("media_base_url"),
			MaxUploadSize: v.GetInt64("media_max_upload_size"),
		},
		Activity: ActivityConfig{
			BufferSize: v.GetInt("activity_buffer_size"),
			Workers:    v.GetInt("activity_workers"),
		},
		Enrollment: EnrollmentConfig{
			NotifyTimeout: v.GetDuration("enrollment_notify_timeout"),
		},
	}
}

func setDefaults(v *viper.Viper, env, wd string) {
	v.SetDefault("app_name", "Shule")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("secret_key", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("work_dir", wd)
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debug_host", "0.0.0.0:4000")
	v.SetDefault("server_read_timeout", 5*time.Second)
	v.SetDefault("server_write_timeout", 10*time.Second)
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", fmt.Sprintf("shule_%s", strings.ToLower(env)))
	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_max_idle_conns", 5)

	v.SetDefault("redis_cache_ttl", 30*time.Second)

	v.SetDefault("media_dir", filepath.Join(wd, "media"))
	v.SetDefault("media_base_url", "/media")
	v.SetDefault("media_max_upload_size", int64(5<<20))

	v.SetDefault("activity_buffer_size", 256)
	v.SetDefault("activity_workers", 2)

	v.SetDefault("enrollment_notify_timeout", 10*time.Second)
}

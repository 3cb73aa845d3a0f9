package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string
		Build    string
		AppName  string
		Debug    bool
		TestMode bool
		WorkDir  string

		Server   ServerConfig
		Cache    CacheConfig
		Database DatabaseConfig

		FixturePath         string
		RollbarToken        string
		SendgridApiKey      string
		defaultFromEmail    string
		conflictAlertEmails []string
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	// CacheConfig selects where timetable snapshots are persisted.
	CacheConfig struct {
		Engine string // memory | sqlite | postgres
		Path   string // sqlite file
		Slot   string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (conf *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(conf.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

// ConflictAlertEmails returns the recipients of timetable conflict alerts; invalid entries are skipped.
func (conf *Config) ConflictAlertEmails() []mail.Address {
	addrs := make([]mail.Address, 0, len(conf.conflictAlertEmails))
	for _, raw := range conf.conflictAlertEmails {
		raw = CleanString(raw)
		if raw == "" {
			continue
		}
		if addr, err := mail.ParseAddress(raw); err == nil {
			addrs = append(addrs, *addr)
		}
	}
	return addrs
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Newschool Timetable")
	v.SetDefault("build", "develop")
	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("cache.engine", "sqlite")
	v.SetDefault("cache.path", "timetable.db")
	v.SetDefault("cache.slot", "timetable-storage")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "newschool")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("fixturePath", "fixtures/timetable.yaml")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("conflictAlertEmails", []string{})

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

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

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		WorkDir:  wd,
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Cache: CacheConfig{
			Engine: CleanString(v.GetString("cache.engine"), true /* lower */),
			Path:   v.GetString("cache.path"),
			Slot:   v.GetString("cache.slot"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		FixturePath:         v.GetString("fixturePath"),
		RollbarToken:        v.GetString("rollbarToken"),
		SendgridApiKey:      v.GetString("sendgridApiKey"),
		defaultFromEmail:    v.GetString("defaultFromEmail"),
		conflictAlertEmails: v.GetStringSlice("conflictAlertEmails"),
	}
}

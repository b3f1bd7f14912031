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
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		WorkDir      string
		RollbarToken string

		SendgridApiKey      string
		DefaultFromName     string
		DefaultFromAddress  string
		CommonPasswordsFile string

		Server   ServerConfig
		Database DatabaseConfig
		Import   ImportConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool

		// JWTExpirationDelta is the lifetime of the tokens issued by the login endpoint.
		JWTExpirationDelta time.Duration
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

	ImportConfig struct {
		DefaultMaterialType string
		LoginDomain         string
		MaxReportErrors     int
		ReportRecipients    []string
	}
)

// Address returns the "host:port" the database listens on.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.DefaultFromName, Address: conf.DefaultFromAddress}
}

// NewConfig reads the configuration from the environment.
// ENV selects the variables prefix (DEV by default) and the optional `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Pathways")
	v.SetDefault("secretKey", "x7d!k2#pq9@lm4$vb8^zr1&hw5*tn3(c")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromName", "Pathways")
	v.SetDefault("defaultFromAddress", "noreply@localhost")
	v.SetDefault("commonPasswordsFile", "")

	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)
	v.SetDefault("serverJWTExpirationDelta", 24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "pathways")
	v.SetDefault("dbUser", "pathways")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("importDefaultMaterialType", "document")
	v.SetDefault("importLoginDomain", "training.local")
	v.SetDefault("importMaxReportErrors", 10)
	v.SetDefault("importReportRecipients", []string{})

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
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

	return &Config{
		Env:                 env,
		Build:               v.GetString("build"),
		Debug:               v.GetBool("debug"),
		TestMode:            v.GetBool("testMode"),
		AppName:             v.GetString("appName"),
		SecretKey:           v.GetString("secretKey"),
		WorkDir:             wd,
		RollbarToken:        v.GetString("rollbarToken"),
		SendgridApiKey:      v.GetString("sendgridApiKey"),
		DefaultFromName:     v.GetString("defaultFromName"),
		DefaultFromAddress:  v.GetString("defaultFromAddress"),
		CommonPasswordsFile: v.GetString("commonPasswordsFile"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			DebugHost:          v.GetString("serverDebugHost"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:     v.GetBool("serverDisableReqLogs"),
			JWTExpirationDelta: v.GetDuration("serverJWTExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Import: ImportConfig{
			DefaultMaterialType: v.GetString("importDefaultMaterialType"),
			LoginDomain:         v.GetString("importLoginDomain"),
			MaxReportErrors:     v.GetInt("importMaxReportErrors"),
			ReportRecipients:    v.GetStringSlice("importReportRecipients"),
		},
	}
}

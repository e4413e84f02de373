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
	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
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
		InMemory      bool
	}

	// SessionConfig holds the defaults applied to every tracked user session.
	// SessionTimeout is accepted for compatibility but no expiry check consults it.
	SessionConfig struct {
		SessionTimeout     time.Duration
		InactivityTimeout  time.Duration
		MaxSessionDuration time.Duration
		CheckInterval      time.Duration
	}

	// OverlayConfig drives the video watermark positioner.
	OverlayConfig struct {
		MinInterval   time.Duration
		MaxInterval   time.Duration
		InitialDelay  time.Duration
		StartDelay    time.Duration
		WatchInterval time.Duration
		Margin        float64
		Width         float64
		Height        float64
	}

	VideoConfig struct {
		StreamTokenTTL     time.Duration
		StreamTokenTimeout time.Duration
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		RollbarToken              string
		SendgridAPIKey            string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Session  SessionConfig
		Overlay  OverlayConfig
		Video    VideoConfig

		defaultFromEmail mail.Address
	}
)

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return conf.defaultFromEmail
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	vp := viper.New()

	// defaults
	vp.SetTypeByDefaultValue(true)
	vp.SetDefault("debug", true)
	vp.SetDefault("testMode", false)
	vp.SetDefault("build", "dev")
	vp.SetDefault("appName", "Classroom")
	vp.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	vp.SetDefault("frontendBaseURL", "http://localhost:3000")
	vp.SetDefault("defaultFromEmail", "noreply@localhost")
	vp.SetDefault("rollbarToken", "")
	vp.SetDefault("sendgridAPIKey", "")
	vp.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	vp.SetDefault("server.host", "")
	vp.SetDefault("server.port", "8000")
	vp.SetDefault("server.debugHost", ":4000")
	vp.SetDefault("server.readTimeout", 5*time.Second)
	vp.SetDefault("server.writeTimeout", 5*time.Second)
	vp.SetDefault("server.shutdownTimeout", 5*time.Second)
	vp.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	vp.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	vp.SetDefault("database.engine", "postgres")
	vp.SetDefault("database.host", "localhost")
	vp.SetDefault("database.port", "5432")
	vp.SetDefault("database.name", "classroom")
	vp.SetDefault("database.user", "classroom")
	vp.SetDefault("database.password", "")
	vp.SetDefault("database.adminUser", "postgres")
	vp.SetDefault("database.adminPassword", "")
	vp.SetDefault("database.disableTLS", true)
	vp.SetDefault("database.inMemory", false)

	vp.SetDefault("session.sessionTimeout", 30*time.Minute)
	vp.SetDefault("session.inactivityTimeout", 15*time.Minute)
	vp.SetDefault("session.maxSessionDuration", 8*time.Hour)
	vp.SetDefault("session.checkInterval", time.Minute)

	vp.SetDefault("overlay.minInterval", 5*time.Second)
	vp.SetDefault("overlay.maxInterval", 10*time.Second)
	vp.SetDefault("overlay.initialDelay", 100*time.Millisecond)
	vp.SetDefault("overlay.startDelay", time.Second)
	vp.SetDefault("overlay.watchInterval", 2*time.Second)
	vp.SetDefault("overlay.margin", 10.0)
	vp.SetDefault("overlay.width", 100.0)
	vp.SetDefault("overlay.height", 40.0)

	vp.SetDefault("video.streamTokenTTL", 2*time.Hour)
	vp.SetDefault("video.streamTokenTimeout", 10*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		vp.SetDefault("testMode", true)
		vp.SetDefault("database.inMemory", true)
	}
	vp.SetEnvPrefix(env)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	vp.AutomaticEnv()

	conf := &Config{
		Env:                       env,
		Build:                     vp.GetString("build"),
		Debug:                     vp.GetBool("debug"),
		TestMode:                  vp.GetBool("testMode"),
		AppName:                   vp.GetString("appName"),
		SecretKey:                 vp.GetString("secretKey"),
		FrontendBaseURL:           vp.GetString("frontendBaseURL"),
		WorkDir:                   workDir,
		RollbarToken:              vp.GetString("rollbarToken"),
		SendgridAPIKey:            vp.GetString("sendgridAPIKey"),
		PasswordResetTimeoutDelta: vp.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      vp.GetString("server.host"),
			Port:                      vp.GetString("server.port"),
			DebugHost:                 vp.GetString("server.debugHost"),
			ReadTimeout:               vp.GetDuration("server.readTimeout"),
			WriteTimeout:              vp.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           vp.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        vp.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: vp.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        vp.GetString("database.engine"),
			Host:          vp.GetString("database.host"),
			Port:          vp.GetString("database.port"),
			Name:          vp.GetString("database.name"),
			User:          vp.GetString("database.user"),
			Password:      vp.GetString("database.password"),
			AdminUser:     vp.GetString("database.adminUser"),
			AdminPassword: vp.GetString("database.adminPassword"),
			DisableTLS:    vp.GetBool("database.disableTLS"),
			InMemory:      vp.GetBool("database.inMemory"),
		},
		Session: SessionConfig{
			SessionTimeout:     vp.GetDuration("session.sessionTimeout"),
			InactivityTimeout:  vp.GetDuration("session.inactivityTimeout"),
			MaxSessionDuration: vp.GetDuration("session.maxSessionDuration"),
			CheckInterval:      vp.GetDuration("session.checkInterval"),
		},
		Overlay: OverlayConfig{
			MinInterval:   vp.GetDuration("overlay.minInterval"),
			MaxInterval:   vp.GetDuration("overlay.maxInterval"),
			InitialDelay:  vp.GetDuration("overlay.initialDelay"),
			StartDelay:    vp.GetDuration("overlay.startDelay"),
			WatchInterval: vp.GetDuration("overlay.watchInterval"),
			Margin:        vp.GetFloat64("overlay.margin"),
			Width:         vp.GetFloat64("overlay.width"),
			Height:        vp.GetFloat64("overlay.height"),
		},
		Video: VideoConfig{
			StreamTokenTTL:     vp.GetDuration("video.streamTokenTTL"),
			StreamTokenTimeout: vp.GetDuration("video.streamTokenTimeout"),
		},
		defaultFromEmail: mail.Address{Name: vp.GetString("appName"), Address: vp.GetString("defaultFromEmail")},
	}
	return conf
}

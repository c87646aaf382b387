package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	JWTSecret   string
	JWTTTL      time.Duration
	PhoneRegion string
	CORSOrigins []string

	// database
	DBDriver    string // sqlite, postgres or pgx
	SQLITEDsn   string
	PostgresDsn string

	UploadDir     string
	UploadBaseURL string

	PresenceTimeout  time.Duration
	EscalationWindow time.Duration
	SweepInterval    time.Duration
	SweepItemTimeout time.Duration

	// optional; typing signals and leader election move to JetStream when set
	NATSURL  string
	NATSUser string
	NATSPass string

	// SendGrid missed-chat alerts
	SendGridAPIKey string
	SendGridFrom   string
	AlertEmailTo   string

	// Twilio missed-chat alerts
	TwilioSID   string
	TwilioToken string
	TwilioFrom  string
	AlertSMSTo  string

	OTLPEndpoint string
	ServiceName  string
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// bare numbers are seconds
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() (Config, error) {
	cfg := Config{
		Addr:           getenv("HTTP_ADDR", ":8080"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		PhoneRegion:    getenv("PHONE_REGION", "US"),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "*")),
		DBDriver:       getenv("DB_DRIVER", "sqlite"),
		SQLITEDsn:      getenv("SQLITE_DSN", "file:shopdesk.db?_pragma=foreign_keys(ON)"),
		PostgresDsn:    getenv("POSTGRES_DSN", ""),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		UploadBaseURL:  getenv("UPLOAD_BASE_URL", "/uploads"),
		NATSURL:        getenv("NATS_URL", ""),
		NATSUser:       getenv("NATS_USER", ""),
		NATSPass:       getenv("NATS_PASS", ""),
		SendGridAPIKey: getenv("SENDGRID_API_KEY", ""),
		SendGridFrom:   getenv("SENDGRID_FROM", ""),
		AlertEmailTo:   getenv("ALERT_EMAIL_TO", ""),
		TwilioSID:      getenv("TWILIO_SID", ""),
		TwilioToken:    getenv("TWILIO_TOKEN", ""),
		TwilioFrom:     getenv("TWILIO_FROM", ""),
		AlertSMSTo:     getenv("ALERT_SMS_TO", ""),
		OTLPEndpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:    getenv("OTEL_SERVICE_NAME", "shopdesk"),
	}

	var errs []error
	dur := func(dst *time.Duration, key string, def time.Duration) {
		d, err := durationEnv(key, def)
		errs = append(errs, err)
		*dst = d
	}
	dur(&cfg.JWTTTL, "JWT_TTL", 24*time.Hour)
	dur(&cfg.PresenceTimeout, "PRESENCE_TIMEOUT", 70*time.Second)
	dur(&cfg.EscalationWindow, "ESCALATION_WINDOW", 2*time.Minute)
	dur(&cfg.SweepInterval, "SWEEP_INTERVAL", 60*time.Second)
	dur(&cfg.SweepItemTimeout, "SWEEP_ITEM_TIMEOUT", 5*time.Second)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DBDriver {
	case "sqlite":
	case "postgres", "pgx":
		if c.PostgresDsn == "" {
			errs = append(errs, fmt.Errorf("POSTGRES_DSN is required for DB_DRIVER=%s", c.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	for key, d := range map[string]time.Duration{
		"JWT_TTL": c.JWTTTL, "PRESENCE_TIMEOUT": c.PresenceTimeout, "ESCALATION_WINDOW": c.EscalationWindow,
		"SWEEP_INTERVAL": c.SweepInterval, "SWEEP_ITEM_TIMEOUT": c.SweepItemTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.SendGridAPIKey != "" && (c.SendGridFrom == "" || c.AlertEmailTo == "") {
		errs = append(errs, errors.New("SENDGRID_FROM and ALERT_EMAIL_TO are required with SENDGRID_API_KEY"))
	}
	if c.TwilioSID != "" && (c.TwilioToken == "" || c.TwilioFrom == "" || c.AlertSMSTo == "") {
		errs = append(errs, errors.New("TWILIO_TOKEN, TWILIO_FROM and ALERT_SMS_TO are required with TWILIO_SID"))
	}
	return errors.Join(errs...)
}

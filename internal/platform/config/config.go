package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	CipherSecret    string
	WebhookSecret   string
	AdminSigningKey string
	UpgradeURL      string
	VendorAPIURL    string
	Environment     string
	RequestTimeout  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TOOLGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	upgradeURL := os.Getenv("UPGRADE_URL")
	if upgradeURL == "" {
		upgradeURL = "/plans"
	}

	timeout := 30 * time.Second
	if raw := os.Getenv("REQUEST_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		}
	}

	adminKey := os.Getenv("ADMIN_SIGNING_KEY")
	if adminKey == "" {
		// Use a default for development - should be overridden in production
		adminKey = "dev-secret-key-change-in-production"
	}

	vendorAPI := os.Getenv("VENDOR_API_URL")
	if vendorAPI == "" {
		vendorAPI = "http://localhost:9000/tools"
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		CipherSecret:    os.Getenv("CIPHER_SECRET"),
		WebhookSecret:   os.Getenv("WEBHOOK_SHARED_SECRET"),
		AdminSigningKey: adminKey,
		UpgradeURL:      upgradeURL,
		VendorAPIURL:    vendorAPI,
		Environment:     environment,
		RequestTimeout:  timeout,
	}
}

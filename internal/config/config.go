// Package config loads process configuration from the environment. Every
// credential is required; a missing value aborts startup before the relay
// accepts any traffic.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration.
type Config struct {
	// Port the health/readout server listens on.
	Port int `envconfig:"PORT" default:"3000"`

	// ServerURL is the externally reachable base URL of this relay, used to
	// build gateway callback URLs.
	ServerURL string `envconfig:"SERVER_URL" required:"true"`

	PayWay   PayWay
	Firebase Firebase
}

// PayWay holds the gateway credentials and endpoints.
type PayWay struct {
	APIURL     string `envconfig:"ABA_PAYWAY_API_URL" required:"true"`
	CheckURL   string `envconfig:"ABA_PAYWAY_CHECK_URL" required:"true"`
	MerchantID string `envconfig:"ABA_PAYWAY_MERCHANT_ID" required:"true"`
	APIKey     string `envconfig:"ABA_PAYWAY_API_KEY" required:"true"`
}

// Firebase holds the pieces of the service-account credential, delivered as
// individual environment variables.
type Firebase struct {
	Type                string `envconfig:"FIREBASE_TYPE" default:"service_account"`
	ProjectID           string `envconfig:"FIREBASE_PROJECT_ID" required:"true"`
	PrivateKeyID        string `envconfig:"FIREBASE_PRIVATE_KEY_ID"`
	PrivateKey          string `envconfig:"FIREBASE_PRIVATE_KEY" required:"true"`
	ClientEmail         string `envconfig:"FIREBASE_CLIENT_EMAIL" required:"true"`
	ClientID            string `envconfig:"FIREBASE_CLIENT_ID"`
	AuthURI             string `envconfig:"FIREBASE_AUTH_URI" default:"https://accounts.google.com/o/oauth2/auth"`
	TokenURI            string `envconfig:"FIREBASE_TOKEN_URI" default:"https://oauth2.googleapis.com/token"`
	AuthProviderCertURL string `envconfig:"FIREBASE_AUTH_PROVIDER_X509_CERT_URL"`
	ClientCertURL       string `envconfig:"FIREBASE_CLIENT_X509_CERT_URL"`
	UniverseDomain      string `envconfig:"FIREBASE_UNIVERSE_DOMAIN"`
	DatabaseURL         string `envconfig:"FIREBASE_DB_URL" required:"true"`
}

// Load reads a .env file if one is present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// ServiceAccountJSON assembles the credential document the Firebase SDK
// expects. Private keys set through most orchestrators arrive with literal
// \n sequences; they are unescaped here.
func (f Firebase) ServiceAccountJSON() ([]byte, error) {
	doc := map[string]string{
		"type":         f.Type,
		"project_id":   f.ProjectID,
		"private_key":  strings.ReplaceAll(f.PrivateKey, `\n`, "\n"),
		"client_email": f.ClientEmail,
		"auth_uri":     f.AuthURI,
		"token_uri":    f.TokenURI,
	}
	optional := map[string]string{
		"private_key_id":              f.PrivateKeyID,
		"client_id":                   f.ClientID,
		"auth_provider_x509_cert_url": f.AuthProviderCertURL,
		"client_x509_cert_url":        f.ClientCertURL,
		"universe_domain":             f.UniverseDomain,
	}
	for key, value := range optional {
		if value != "" {
			doc[key] = value
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal service account: %w", err)
	}
	return data, nil
}

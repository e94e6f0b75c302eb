package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "kg-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "kg-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Storage.Driver != StorageDriverFirestore {
		t.Errorf("expected firestore driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Maps.Timeout != 5*time.Second {
		t.Errorf("unexpected maps timeout: %s", cfg.Maps.Timeout)
	}
	if cfg.Pricing.TaxRateBasisPoints != 800 || cfg.Pricing.FreeShippingThreshold != 10000 || cfg.Pricing.FlatShipping != 1500 {
		t.Errorf("unexpected pricing defaults: %+v", cfg.Pricing)
	}
	if cfg.Logistics.MaxRecommendations != 3 {
		t.Errorf("unexpected max recommendations: %d", cfg.Logistics.MaxRecommendations)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.Issuers[0] != defaultOIDCIssuer {
		t.Errorf("expected default issuer, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" {
		t.Errorf("unexpected idempotency header: %s", cfg.Idempotency.Header)
	}
	if len(cfg.Events.KafkaBrokers) != 0 {
		t.Errorf("expected kafka disabled, got %v", cfg.Events.KafkaBrokers)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                     "9090",
		"API_SERVER_REQUEST_TIMEOUT":          "10s",
		"API_FIREBASE_PROJECT_ID":             "kg-prod",
		"API_FIRESTORE_PROJECT_ID":            "kg-orders",
		"API_EVENTS_PUBSUB_TOPIC":             "order-events",
		"API_EVENTS_KAFKA_BROKERS":            "kafka-1:9092, kafka-2:9092",
		"API_MAPS_API_KEY":                    "sm://maps/api-key",
		"API_MAPS_TIMEOUT":                    "3s",
		"API_PRICING_TAX_BASIS_POINTS":        "1200",
		"API_PRICING_FREE_SHIPPING_THRESHOLD": "50000",
		"API_PRICING_FLAT_SHIPPING":           "4000",
		"API_LOGISTICS_MAX_RECOMMENDATIONS":   "5",
		"API_SECURITY_OIDC_AUDIENCE":          "https://api.kalaghar.example",
		"API_SECURITY_OIDC_ISSUERS":           "https://accounts.google.com, accounts.google.com",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://maps/api-key" {
			return "maps-key", nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver), WithRequiredSecrets("Maps.APIKey"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "kg-orders" {
		t.Errorf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Maps.APIKey != "maps-key" {
		t.Errorf("expected resolved maps key, got %q", cfg.Maps.APIKey)
	}
	if got := strings.Join(cfg.Events.KafkaBrokers, ","); got != "kafka-1:9092,kafka-2:9092" {
		t.Errorf("unexpected kafka brokers: %s", got)
	}
	if cfg.Pricing.TaxRateBasisPoints != 1200 || cfg.Pricing.FlatShipping != 4000 {
		t.Errorf("unexpected pricing: %+v", cfg.Pricing)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("expected two issuers, got %v", cfg.Security.OIDC.Issuers)
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "kg-dev",
		"API_MAPS_API_KEY":        "secret://maps/api-key",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected resolver not configured, got %v", err)
	}
}

func TestLoadMissingRequiredSecretIsRedacted(t *testing.T) {
	env := map[string]string{"API_FIREBASE_PROJECT_ID": "kg-dev"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithRequiredSecrets("Maps.APIKey"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Maps.APIKey" {
		t.Fatalf("unexpected names: %v", names)
	}
	if strings.Contains(err.Error(), "Maps.APIKey") {
		t.Fatalf("expected redacted error message, got %s", err.Error())
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_STORAGE_DRIVER":                "postgres",
		"API_LOGISTICS_MAX_RECOMMENDATIONS": "0",
		"API_PRICING_FLAT_SHIPPING":         "-1",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"Storage.Driver": true, "Logistics.MaxRecommendations": true, "Pricing.FlatShipping": true}
	for _, field := range validation.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing validation fields: %v (got %v)", want, validation.Fields())
	}
}

func TestLoadMemoryDriverNeedsNoProject(t *testing.T) {
	env := map[string]string{"API_STORAGE_DRIVER": "memory"}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("expected memory driver, got %s", cfg.Storage.Driver)
	}
}

func TestLoadReadsDotEnvBelowExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_FIREBASE_PROJECT_ID=kg-file\nAPI_SERVER_PORT=7070\n# comment\nAPI_MAPS_TIMEOUT=\"2s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"API_SERVER_PORT": "6060"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "kg-file" {
		t.Errorf("expected project from .env, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected explicit port to win, got %s", cfg.Server.Port)
	}
	if cfg.Maps.Timeout != 2*time.Second {
		t.Errorf("expected quoted duration from .env, got %s", cfg.Maps.Timeout)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	env := map[string]string{"API_FIREBASE_PROJECT_ID": "kg-dev"}
	if _, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(filepath.Join(t.TempDir(), "absent.env"))); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}

func TestLookupUsesPrecedence(t *testing.T) {
	value, ok, err := Lookup("API_SECRET_FALLBACKS", WithEnvMap(map[string]string{"API_SECRET_FALLBACKS": "a=b"}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil || !ok || value != "a=b" {
		t.Fatalf("unexpected lookup result %q %v %v", value, ok, err)
	}
}

package config

import (
	"testing"
	"time"

	"github.com/deptconnect/portal/pkg/errs"
	"github.com/stretchr/testify/require"
)

func setValid(t *testing.T) {
	t.Setenv("BACKEND_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	t.Setenv("MONGODB_DATABASE", "portal_test")
	t.Setenv("PORTAL_DEPLOYMENT_ID", "cse-dept")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
}

func TestLoadConfig(t *testing.T) {
	setValid(t)
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("JWT_SESSION_TTL", "60")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "mongodb://localhost:27017/?replicaSet=rs0", cfg.MongoDB.URI)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.True(t, cfg.Redis.Enabled())
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	require.Equal(t, time.Hour, cfg.JWT.SessionTTL)
	require.Equal(t, 10*time.Second, cfg.MongoDB.Timeout)
	require.True(t, cfg.RateLimit.Enabled)
}

func TestDefaultsServeLocalUserOnly(t *testing.T) {
	setValid(t)
	t.Setenv("SERVER_HOST", "")
	t.Setenv("CORS_ORIGINS", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	require.NotContains(t, cfg.Server.CORSOrigins, "*")
}

func TestValidateReportsConfigError(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"missing deployment", map[string]string{"PORTAL_DEPLOYMENT_ID": ""}, "PORTAL_DEPLOYMENT_ID"},
		{"placeholder deployment", map[string]string{"PORTAL_DEPLOYMENT_ID": "your-deployment-id"}, "PORTAL_DEPLOYMENT_ID"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "JWT_SECRET"},
		{"missing mongo uri", map[string]string{"MONGODB_URI": ""}, "MONGODB_URI"},
		{"unknown driver", map[string]string{"BACKEND_DRIVER": "sqlite"}, "BACKEND_DRIVER"},
		{"keycloak without realm", map[string]string{"KEYCLOAK_URL": "http://kc", "KEYCLOAK_REALM": ""}, "KEYCLOAK_REALM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setValid(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)
			require.True(t, errs.IsConfig(err))
			var ce *errs.ConfigError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestMemoryDriverNeedsNoMongo(t *testing.T) {
	setValid(t)
	t.Setenv("BACKEND_DRIVER", "memory")
	t.Setenv("MONGODB_URI", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestKeycloakIssuer(t *testing.T) {
	k := KeycloakConfig{URL: "http://kc:8080/", Realm: "dept"}
	require.Equal(t, "http://kc:8080/realms/dept", k.Issuer())
	require.Empty(t, KeycloakConfig{}.Issuer())
}

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoot(t *testing.T, yaml string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(yaml), 0o644))
	return root
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetRef(_ context.Context, ref string, _ time.Duration) (string, error) {
	v, ok := f[ref]
	if !ok {
		return "", errors.New("no such secret")
	}
	return v, nil
}

func TestLoadDefaults(t *testing.T) {
	root := writeRoot(t, "log:\n  level: warn\n")

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "lead", cfg.Delivery.Store.Table)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, []string{filepath.Join(root, "conf/forms")}, cfg.Forms.Dirs)
	assert.Equal(t, root, cfg.Paths.Root)
	assert.False(t, cfg.DeliveryConfigured())
	assert.Same(t, cfg, Get())
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	root := writeRoot(t, `
http:
  listen_addr: ":8080"
delivery:
  webhook:
    url: https://hooks.example.com/a
sessions:
  idle_ttl: 5m
`)
	t.Setenv("LEADS_HTTP__LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("LEADS_SESSIONS__IDLE_TTL", "90s")

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.Sessions.IdleTTL)
	assert.True(t, cfg.DeliveryConfigured())
}

func TestLoadDotEnv(t *testing.T) {
	root := writeRoot(t, "smtp:\n  host: mail.example.com\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", ".env"),
		[]byte("LEADS_SMTP__FROM=dotenv@example.com\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LEADS_SMTP__FROM") })

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, "dotenv@example.com", cfg.SMTP.From)
}

func TestLoadResolvesVaultRefs(t *testing.T) {
	root := writeRoot(t, `
security:
  csrf_key: "vault:kv/leads#csrf"
smtp:
  host: mail.example.com
  from: site@example.com
  password: "vault:kv/leads#smtp"
`)
	cfg, err := LoadFrom(context.Background(), root, fakeSecrets{
		"vault:kv/leads#csrf": "0123456789abcdef0123456789abcdef",
		"vault:kv/leads#smtp": "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Security.CSRFKey)
	assert.Equal(t, "hunter2", cfg.SMTP.Password)

	_, err = LoadFrom(context.Background(), root, fakeSecrets{})
	assert.ErrorContains(t, err, "resolve security.csrf_key")
}

func TestLoadVaultRefWithoutVault(t *testing.T) {
	root := writeRoot(t, "security:\n  csrf_key: vault:kv/leads#csrf\n")
	t.Setenv("VAULT_ADDR", "")

	_, err := LoadFrom(context.Background(), root, nil)
	assert.ErrorContains(t, err, "VAULT_ADDR")
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"bad method":       "delivery:\n  webhook:\n    url: https://x.example.com\n    method: GET\n",
		"bad url":          "delivery:\n  webhook:\n    url: not a url\n",
		"store without db": "delivery:\n  store:\n    enabled: true\n",
		"email w/o smtp":   "delivery:\n  email:\n    to: [sales@example.com]\n",
		"bad recipient":    "smtp: {host: h, from: a@b.co}\ndelivery:\n  email:\n    to: [nope]\n",
		"bad table":        "database: {dsn: x}\ndelivery:\n  store:\n    enabled: true\n    table: \"lead; drop\"\n",
		"bad level":        "log:\n  level: loud\n",
		"bad listen":       "http:\n  listen_addr: nowhere\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), writeRoot(t, body), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFrom(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestRootDirFromEnv(t *testing.T) {
	t.Setenv("LEADS_ROOT", "/srv/leads")
	assert.Equal(t, "/srv/leads", RootDir())
}

func TestWatchReloadsOnChange(t *testing.T) {
	root := writeRoot(t, "log:\n  level: info\n")
	_, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, nil, func(c *Config) {
			select {
			case changed <- c:
			default:
			}
		})
	}()

	// Rewrite once a second until the watcher has registered and the
	// debounce window has passed.
	yaml := filepath.Join(root, "conf", "global.yaml")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(yaml, []byte("log:\n  level: debug\n"), 0o644))
	for {
		select {
		case c := <-changed:
			assert.Equal(t, "debug", c.Log.Level)
			cancel()
			require.NoError(t, <-done)
			return
		case <-deadline:
			cancel()
			<-done
			t.Fatal("no reload within 5s")
		case <-tick.C:
			require.NoError(t, os.WriteFile(yaml, []byte("log:\n  level: debug\n"), 0o644))
		}
	}
}

func TestRelevantEvents(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "conf/global.yaml", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "conf/.env", Op: fsnotify.Create}))
	assert.True(t, relevant(fsnotify.Event{Name: "forms/quote.yml", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "conf/global.yaml", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "conf/global.yaml.swp", Op: fsnotify.Write}))
}

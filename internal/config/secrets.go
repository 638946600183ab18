package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/adept-leads/internal/vault"
)

// SecretResolver turns a `vault:` reference into its plain value.
type SecretResolver interface {
	GetRef(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// vaultClient is built on the first reference and reused by reloads, so
// only one token-renewal loop runs.
var vaultClient atomic.Pointer[vault.Client]

// resolveSecrets replaces every `vault:` string in k.  The resolver is only
// built when a reference exists, so deployments without Vault never need
// VAULT_ADDR.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets SecretResolver) error {
	var refs []string
	for key, val := range k.All() {
		if s, ok := val.(string); ok && vault.IsRef(s) {
			refs = append(refs, key)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	sort.Strings(refs)

	if secrets == nil {
		if os.Getenv("VAULT_ADDR") == "" {
			return errors.New("config has vault references but VAULT_ADDR is not set")
		}
		cli := vaultClient.Load()
		if cli == nil {
			var err error
			if cli, err = vault.New(ctx, zap.S()); err != nil {
				return err
			}
			vaultClient.Store(cli)
		}
		secrets = cli
	}

	for _, key := range refs {
		plain, err := secrets.GetRef(ctx, k.String(key), 0)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", key, err)
		}
		if err := k.Set(key, plain); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

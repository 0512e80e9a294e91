package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("MIN_AMOUNT", "")
	t.Setenv("RECONCILE_WINDOW_MINUTES", "")
	t.Setenv("BANK_ACCOUNTS", "")

	cfg := Load()
	assert.Equal(t, StoreDriverMySQL, cfg.Store.Driver)
	assert.Equal(t, int64(1000), cfg.Checkout.MinAmount)
	assert.Equal(t, int64(1000000), cfg.Checkout.MaxAmount)
	assert.Equal(t, int64(100000), cfg.Checkout.BankTransferMinAmount)
	assert.Equal(t, time.Hour, cfg.Reconcile.Window)
	assert.True(t, cfg.Reconcile.NotifyMiss)
	assert.Equal(t, "1234567890 a.n Wago Payment", cfg.Checkout.BankAccounts["bca"])
	assert.NotEmpty(t, cfg.Checkout.StaticQris)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("RECONCILE_WINDOW_MINUTES", "30")
	t.Setenv("RECONCILE_NOTIFY_MISS", "off")
	t.Setenv("DEDUPE_WINDOW_SECONDS", "120")
	t.Setenv("BANK_ACCOUNTS", "BCA=111 a.n A; bni = 222 a.n B ;broken")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("GO_ENV", "production")

	cfg := Load()
	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Reconcile.Window)
	assert.False(t, cfg.Reconcile.NotifyMiss)
	assert.Equal(t, 2*time.Minute, cfg.Reconcile.DedupeTTL)
	assert.Equal(t, map[string]string{"bca": "111 a.n A", "bni": "222 a.n B"}, cfg.Checkout.BankAccounts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestEnvBool(t *testing.T) {
	t.Setenv("FLAG_X", "Yes")
	assert.True(t, envBool("FLAG_X", false))
	t.Setenv("FLAG_X", "0")
	assert.False(t, envBool("FLAG_X", true))
	t.Setenv("FLAG_X", "maybe")
	assert.True(t, envBool("FLAG_X", true))
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryBackoff(1))
	assert.Equal(t, 16*time.Second, retryBackoff(4))
	assert.Equal(t, 30*time.Second, retryBackoff(9))
}

func TestDecodePushEnvelope(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"package_name":"id.dana","text":"Rp 10.005"}`))
	body := []byte(`{"message":{"data":"` + data + `","id":"42"},"subscription":"projects/p/subscriptions/s"}`)

	var dest struct {
		PackageName string `json:"package_name"`
		Text        string `json:"text"`
	}
	env, err := DecodePushEnvelope(body, &dest)
	require.NoError(t, err)
	assert.Equal(t, "42", env.Message.ID)
	assert.Equal(t, "id.dana", dest.PackageName)
	assert.Equal(t, "Rp 10.005", dest.Text)

	_, err = DecodePushEnvelope([]byte(`{"message":{"id":"1"}}`), &dest)
	assert.Error(t, err)
}

package doctor

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/broker/brokertest"
	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/core/runlog"
	"github.com/hay-kot/boatpub/pkg/certutil"
)

func testConfig(t *testing.T, host string, port int) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Broker.Host = host
	cfg.Broker.Port = port
	cfg.Broker.ClientID = "publish-7"
	cfg.Broker.ConnectTimeout = 2 * time.Second
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestRunAll_FillsStatusStrings(t *testing.T) {
	cfg := testConfig(t, "localhost", 0)
	results := RunAll(context.Background(), []Check{NewConfigCheck(cfg, "")})

	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].Items)
	assert.Equal(t, "pass", results[0].Items[0].StatusStr)
}

func TestSummary(t *testing.T) {
	results := []Result{
		{Items: []CheckItem{{Status: StatusPass}, {Status: StatusWarn}}},
		{Items: []CheckItem{{Status: StatusFail}, {Status: StatusPass}}},
	}

	passed, warned, failed := Summary(results)
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 1, failed)
}

func TestConfigCheck(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		result := NewConfigCheck(nil, "").Run(context.Background())
		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})

	t.Run("load error", func(t *testing.T) {
		result := NewConfigCheck(nil, "").WithLoadError(errors.New("parse config file: bad yaml")).Run(context.Background())
		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
		assert.Contains(t, result.Items[0].Detail, "bad yaml")
	})

	t.Run("errors and warnings", func(t *testing.T) {
		cfg := testConfig(t, "localhost", 0)
		cfg.Publish.Count = 0
		cfg.Broker.TLS.Enabled = true
		cfg.Broker.TLS.InsecureSkipVerify = true

		result := NewConfigCheck(cfg, "").Run(context.Background())

		var fails, warns int
		for _, item := range result.Items {
			switch item.Status {
			case StatusFail:
				fails++
				assert.Equal(t, "publish.count", item.Label)
			case StatusWarn:
				warns++
			}
		}
		assert.Equal(t, 1, fails)
		assert.GreaterOrEqual(t, warns, 1)
	})
}

func TestConfigCheck_PasswordSource(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv(config.PasswordEnvVar, "hunter2")
		cfg := testConfig(t, "localhost", 0)
		cfg.Broker.Username = "skipper"
		cfg.Broker.TLS.Enabled = true

		result := NewConfigCheck(cfg, "").Run(context.Background())

		require.Len(t, result.Items, 2)
		assert.Equal(t, StatusPass, result.Items[0].Status)
		assert.Equal(t, "Password source", result.Items[1].Label)
		assert.Equal(t, config.PasswordEnvVar, result.Items[1].Detail)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(config.PasswordEnvVar, "")
		cfg := testConfig(t, "localhost", 0)
		cfg.Broker.Username = "skipper"
		cfg.Broker.TLS.Enabled = true

		result := NewConfigCheck(cfg, "").Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, "broker.password", result.Items[0].Label)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})
}

func TestBrokerCheck_Pass(t *testing.T) {
	srv := brokertest.New(t)
	cfg := testConfig(t, srv.Host(), srv.Port())

	result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "Connect tcp://"+srv.Addr(), result.Items[0].Label)
	assert.Eventually(t, func() bool { return srv.Disconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestBrokerCheck_Rejected(t *testing.T) {
	srv := brokertest.New(t, brokertest.WithReturnCode(5))
	cfg := testConfig(t, srv.Host(), srv.Port())

	result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "rejected")
}

func TestBrokerCheck_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testConfig(t, "127.0.0.1", port)
	result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "transport")
}

func TestBrokerCheck_UntrustedCertificate(t *testing.T) {
	pair, err := certutil.SelfSigned("127.0.0.1")
	require.NoError(t, err)
	cert, err := pair.TLSCertificate()
	require.NoError(t, err)

	srv := brokertest.New(t, brokertest.WithTLS(cert))
	cfg := testConfig(t, srv.Host(), srv.Port())
	cfg.Broker.TLS.Enabled = true

	result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "certificate")
}

func TestBrokerCheck_BadTLSMaterial(t *testing.T) {
	cfg := testConfig(t, "localhost", 0)
	cfg.Broker.TLS.Enabled = true
	cfg.Broker.TLS.CAFile = filepath.Join(t.TempDir(), "missing.pem")

	result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, "Broker options", result.Items[0].Label)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestBrokerCheck_ResolvesPassword(t *testing.T) {
	t.Run("from env", func(t *testing.T) {
		t.Setenv(config.PasswordEnvVar, "hunter2")
		srv := brokertest.New(t)
		cfg := testConfig(t, srv.Host(), srv.Port())
		cfg.Broker.Username = "skipper"

		result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusPass, result.Items[0].Status)
		require.Len(t, srv.Logins(), 1)
		assert.Equal(t, "hunter2", srv.Logins()[0].Password)
		assert.Empty(t, cfg.Broker.Password)
	})

	t.Run("missing password file", func(t *testing.T) {
		t.Setenv(config.PasswordEnvVar, "")
		cfg := testConfig(t, "127.0.0.1", 1)
		cfg.Broker.Username = "skipper"
		cfg.Broker.PasswordFile = filepath.Join(t.TempDir(), "password")

		result := NewBrokerCheck(cfg, broker.NewDialer(zerolog.Nop())).Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, "Broker credentials", result.Items[0].Label)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})
}

type mockStore struct {
	entries []runlog.Entry
	err     error
}

func (m *mockStore) List(_ context.Context) ([]runlog.Entry, error) {
	return m.entries, m.err
}

func (m *mockStore) Get(_ context.Context, _ string) (runlog.Entry, error) {
	return runlog.Entry{}, runlog.ErrNotFound
}

func (m *mockStore) Save(_ context.Context, _ runlog.Entry) error {
	return nil
}

func (m *mockStore) Clear(_ context.Context) error {
	return nil
}

func (m *mockStore) LastFailed(_ context.Context) (runlog.Entry, error) {
	return runlog.Entry{}, runlog.ErrNotFound
}

func TestHistoryCheck(t *testing.T) {
	tests := []struct {
		name       string
		store      *mockStore
		wantItems  int
		wantLast   Status
		wantDetail string
	}{
		{
			name:      "empty",
			store:     &mockStore{},
			wantItems: 1,
		},
		{
			name: "last run ok",
			store: &mockStore{entries: []runlog.Entry{
				{ID: "aaa", Requested: 500, Accepted: 500},
			}},
			wantItems:  2,
			wantLast:   StatusPass,
			wantDetail: "500/500 accepted",
		},
		{
			name: "last run failed to connect",
			store: &mockStore{entries: []runlog.Entry{
				{ID: "bbb", Error: "connect 127.0.0.1:1883: connection refused"},
				{ID: "aaa", Requested: 500, Accepted: 500},
			}},
			wantItems:  2,
			wantLast:   StatusWarn,
			wantDetail: "connection refused",
		},
		{
			name: "last run had rejections",
			store: &mockStore{entries: []runlog.Entry{
				{ID: "ccc", Requested: 3, Accepted: 2, Rejected: 1},
			}},
			wantItems:  2,
			wantLast:   StatusWarn,
			wantDetail: "1 rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewHistoryCheck(tt.store).Run(context.Background())

			assert.Equal(t, "Run History", result.Name)
			require.Len(t, result.Items, tt.wantItems)
			assert.Equal(t, StatusPass, result.Items[0].Status)

			if tt.wantItems > 1 {
				last := result.Items[1]
				assert.Equal(t, tt.wantLast, last.Status)
				assert.Contains(t, last.Detail, tt.wantDetail)
			}
		})
	}
}

func TestHistoryCheck_Unreadable(t *testing.T) {
	store := &mockStore{err: errors.New("corrupted")}

	result := NewHistoryCheck(store).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Equal(t, "corrupted", result.Items[0].Detail)
}

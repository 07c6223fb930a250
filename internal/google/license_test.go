package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mvgmail/internal/storage"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

const workspaceUser = "jane@corp.example"

func seedWorkspace(t *testing.T, store *tokenstore.Store, p tokenstore.Patch) {
	t.Helper()
	base := tokenstore.Patch{
		AccessToken:    tokenstore.String("at"),
		AccessTokenExp: tokenstore.Int64(testNow.Add(time.Hour).UnixMilli()),
		GSuite:         tokenstore.String("corp.example"),
		GmailAccountID: tokenstore.String("108000000000000000001"),
	}
	require.NoError(t, store.Set(context.Background(), workspaceUser, base))
	require.NoError(t, store.Set(context.Background(), workspaceUser, p))
}

func TestMonthStart(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	got := MonthStart(time.Date(2026, time.March, 31, 23, 30, 0, 0, berlin))
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, berlin), got)
}

func TestHashAccountID(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashAccountID("abc"))
}

func TestLicenseCheck_NotEnterprise(t *testing.T) {
	f := newFakeGoogle(t)
	store := newTestStore()
	now := testNow
	require.NoError(t, store.Set(context.Background(), "joe@gmail.com", tokenstore.Patch{AccessToken: tokenstore.String("at")}))

	lc := NewLicenseChecker(f.config(), store, f.options(&now))
	require.NoError(t, lc.Check(context.Background(), "joe@gmail.com", false))
	require.NoError(t, lc.Check(context.Background(), "missing@gmail.com", false))
	assert.Empty(t, f.licenseCalls())
}

func TestLicenseCheck_SuccessIsCachedForMonth(t *testing.T) {
	f := newFakeGoogle(t)
	store := newTestStore()
	seedWorkspace(t, store, tokenstore.Patch{})
	now := testNow
	lc := NewLicenseChecker(f.config(), store, f.options(&now))
	ctx := context.Background()

	require.NoError(t, lc.Check(ctx, workspaceUser, false))
	calls := f.licenseCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "corp.example", calls[0].Domain)
	assert.Equal(t, HashAccountID("108000000000000000001"), calls[0].User)

	rec, err := store.Get(ctx, workspaceUser)
	require.NoError(t, err)
	assert.Equal(t, MonthStart(now).UnixMilli(), rec.MveloLicenseIssued)

	// same month: no request
	now = testNow.Add(10 * 24 * time.Hour)
	require.NoError(t, lc.Check(ctx, workspaceUser, false))
	assert.Len(t, f.licenseCalls(), 1)

	// next month: checked again
	now = time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, lc.Check(ctx, workspaceUser, false))
	assert.Len(t, f.licenseCalls(), 2)
}

func TestLicenseCheck_FailureWithoutLegacy(t *testing.T) {
	f := newFakeGoogle(t)
	f.setLicense(http.StatusForbidden, `{"error":{"message":"no seats left"}}`)
	store := newTestStore()
	seedWorkspace(t, store, tokenstore.Patch{MveloLicenseIssued: tokenstore.Int64(12345)})
	now := testNow

	err := NewLicenseChecker(f.config(), store, f.options(&now)).Check(context.Background(), workspaceUser, false)

	var le *LicensingError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "no seats left", le.Reason)
	assert.Equal(t, "corp.example", le.Domain)

	rec, err := store.Get(context.Background(), workspaceUser)
	require.NoError(t, err)
	assert.Zero(t, rec.MveloLicenseIssued)
	assert.False(t, rec.LegacyGSuite)
}

func TestLicenseCheck_LegacyExemption(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeGoogle) Config
	}{
		{
			name: "http failure",
			setup: func(f *fakeGoogle) Config {
				f.setLicense(http.StatusInternalServerError, "boom")
				return f.config()
			},
		},
		{
			name: "transport failure",
			setup: func(f *fakeGoogle) Config {
				cfg := f.config()
				cfg.LicenseURL = "http://127.0.0.1:1/license"
				return cfg
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGoogle(t)
			cfg := tt.setup(f)
			store := newTestStore()
			seedWorkspace(t, store, tokenstore.Patch{})
			now := testNow
			lc := NewLicenseChecker(cfg, store, f.options(&now))

			require.NoError(t, lc.Check(context.Background(), workspaceUser, true))

			rec, err := store.Get(context.Background(), workspaceUser)
			require.NoError(t, err)
			assert.True(t, rec.LegacyGSuite)

			// recorded exemption skips the network
			before := len(f.licenseCalls())
			require.NoError(t, lc.Check(context.Background(), workspaceUser, true))
			assert.Len(t, f.licenseCalls(), before)
		})
	}
}

func TestLicenseCheck_LegacyExemptionSurvivesCancel(t *testing.T) {
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := tokenstore.New(storage.New(db, nil), nil)
	seedWorkspace(t, store, tokenstore.Patch{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.LicenseURL = srv.URL + "/license"
	lc := NewLicenseChecker(cfg, store, Options{
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return testNow },
	})

	require.NoError(t, lc.Check(ctx, workspaceUser, true))

	rec, err := store.Get(context.Background(), workspaceUser)
	require.NoError(t, err)
	assert.True(t, rec.LegacyGSuite)
	assert.Zero(t, rec.MveloLicenseIssued)
}

func TestLicenseCheck_PersistFailureIsReported(t *testing.T) {
	f := newFakeGoogle(t)
	store := tokenstore.New(&flakyStorage{}, nil)
	now := testNow
	lc := NewLicenseChecker(f.config(), store, f.options(&now))

	err := lc.Check(context.Background(), workspaceUser, false)
	assert.ErrorIs(t, err, errFlaky)
}

var errFlaky = errors.New("storage unavailable")

// flakyStorage returns a Workspace record and fails every write.
type flakyStorage struct{}

func (flakyStorage) Get(_ context.Context, _ string, dst any) (bool, error) {
	m := dst.(*map[string]*tokenstore.StoredToken)
	*m = map[string]*tokenstore.StoredToken{
		workspaceUser: {AccessToken: "at", GSuite: "corp.example", GmailAccountID: "id"},
	}
	return true, nil
}

func (flakyStorage) Set(context.Context, string, any) error {
	return errFlaky
}

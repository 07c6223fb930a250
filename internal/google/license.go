package google

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

// LicenseChecker validates Workspace accounts against the billing service
// at most once per calendar month.
type LicenseChecker struct {
	cfg   Config
	store *tokenstore.Store
	opts  Options
}

// NewLicenseChecker returns a LicenseChecker.
func NewLicenseChecker(cfg Config, store *tokenstore.Store, opts Options) *LicenseChecker {
	return &LicenseChecker{cfg: cfg, store: store, opts: opts.withDefaults("license")}
}

type licenseRequest struct {
	Domain string `json:"domain"`
	User   string `json:"user"`
}

// MonthStart returns the first instant of the month containing t, in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// HashAccountID returns the hex SHA-256 digest sent in place of the account id.
func HashAccountID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Check runs the license check for email. Non-enterprise accounts, accounts
// already licensed this month and recorded legacy exemptions are skipped
// without a network call. The outcome is stored before Check returns.
func (l *LicenseChecker) Check(ctx context.Context, email string, legacyGsuite bool) (err error) {
	logger := logging.WithOperation(l.opts.Logger, "license_check").With(logging.UserHash(email))

	tok, err := l.store.Get(ctx, email)
	if err != nil {
		return err
	}
	if tok == nil || !tok.IsEnterprise() {
		return nil
	}

	monthStart := MonthStart(l.opts.Now()).UnixMilli()
	if tok.MveloLicenseIssued == monthStart {
		l.opts.Metrics.RecordLicenseCheck(ctx, instrumentation.LicenseResultCached)
		return nil
	}
	if legacyGsuite && tok.LegacyGSuite {
		l.opts.Metrics.RecordLicenseCheck(ctx, instrumentation.LicenseResultExempt)
		return nil
	}

	ctx, span := instrumentation.StartOAuthSpan(ctx, "license_check", instrumentation.UserHash(email))
	var patch tokenstore.Patch
	defer func() {
		// the outcome is stored even when ctx was cancelled mid-request
		if setErr := l.store.Set(context.WithoutCancel(ctx), email, patch); setErr != nil {
			err = errors.Join(err, setErr)
		}
		instrumentation.EndSpan(span, err)
	}()

	reqErr := l.request(ctx, licenseRequest{Domain: tok.GSuite, User: HashAccountID(tok.GmailAccountID)})
	if reqErr == nil {
		patch.MveloLicenseIssued = tokenstore.Int64(monthStart)
		l.opts.Metrics.RecordLicenseCheck(ctx, instrumentation.LicenseResultValid)
		logger.Info("workspace license valid", logging.Domain(email))
		return nil
	}

	patch.MveloLicenseIssued = tokenstore.Int64(0)
	if legacyGsuite {
		patch.LegacyGSuite = tokenstore.Bool(true)
		l.opts.Metrics.RecordLicenseCheck(ctx, instrumentation.LicenseResultExempt)
		logger.Warn("license check failed, recording legacy exemption", logging.Err(reqErr))
		return nil
	}

	l.opts.Metrics.RecordLicenseCheck(ctx, instrumentation.LicenseResultDenied)
	var le *LicensingError
	if errors.As(reqErr, &le) {
		return le
	}
	return &LicensingError{Domain: tok.GSuite, Reason: reqErr.Error(), Err: reqErr}
}

func (l *LicenseChecker) request(ctx context.Context, body licenseRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode license request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.LicenseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create license request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("license request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &LicensingError{Domain: body.Domain, Reason: licenseFailureReason(resp.StatusCode, data)}
}

// licenseFailureReason extracts the message of a billing error response.
func licenseFailureReason(status int, body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

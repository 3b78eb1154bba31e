package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dialcoach/partner-api/internal/bootstrap"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

type mintKeyOptions struct {
	PartnerName string
	Environment string
	CompanyID   string
	RateLimit   int
	TTL         time.Duration
	Timeout     time.Duration
}

type listKeysOptions struct {
	All     bool
	Timeout time.Duration
}

type revokeKeyOptions struct {
	ID      string
	Yes     bool
	Timeout time.Duration
}

type requestLogsOptions struct {
	PartnerKeyID string
	Method       string
	PathPrefix   string
	MinStatus    int
	Since        time.Duration
	Limit        int
	Timeout      time.Duration
}

func runMintKey(cmdCtx *commandContext, args []string) error {
	opts, err := parseMintKeyFlags(args)
	if err != nil {
		return err
	}

	req := &model.MintKeyRequest{
		PartnerName:        opts.PartnerName,
		Environment:        model.Environment(opts.Environment),
		RateLimitPerMinute: opts.RateLimit,
	}
	if opts.CompanyID != "" {
		req.CompanyID = &opts.CompanyID
	}
	if opts.TTL > 0 {
		expires := time.Now().Add(opts.TTL)
		req.ExpiresAt = &expires
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		svc, svcErr := newKeyService(cmdCtx, db, nil)
		if svcErr != nil {
			return svcErr
		}

		minted, mintErr := svc.Mint(ctx, req)
		if mintErr != nil {
			return fmt.Errorf("mint key: %w", mintErr)
		}
		return renderMintedKey(os.Stdout, minted)
	})
}

func runListKeys(cmdCtx *commandContext, args []string) error {
	opts, err := parseListKeysFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		svc, svcErr := newKeyService(cmdCtx, db, nil)
		if svcErr != nil {
			return svcErr
		}

		keys, listErr := svc.List(ctx)
		if listErr != nil {
			return fmt.Errorf("list keys: %w", listErr)
		}
		if !opts.All {
			keys = activeKeys(keys)
		}
		return renderKeyTable(os.Stdout, keys)
	})
}

func runRevokeKey(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeKeyFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	// Redis is optional here: with it, revocation also evicts the cached
	// credential so the auth gate sees the change immediately.
	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(db, redisClient); closeErr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", closeErr)
		}
	}()

	keyRepo := newKeyRepo(cmdCtx, db)

	var invalidator service.KeyInvalidator
	if redisClient != nil {
		authSvc, authErr := service.NewPartnerAuthService(service.PartnerAuthServiceOptions{
			Keys:   keyRepo,
			Cache:  data.NewRedisCacheRepo(redisClient),
			Config: cmdCtx.Config.PartnerAuth,
			Logger: cmdCtx.Logger,
		})
		if authErr != nil {
			return fmt.Errorf("build auth service: %w", authErr)
		}
		invalidator = authSvc
	}

	svc, err := service.NewPartnerKeyService(service.PartnerKeyServiceOptions{
		Repo:        keyRepo,
		Config:      cmdCtx.Config.PartnerAuth,
		Invalidator: invalidator,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("build key service: %w", err)
	}

	key, err := svc.Get(ctx, opts.ID)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	confirmOpts := revokeConfirmOptions{
		yes:    opts.Yes,
		target: fmt.Sprintf("partner %q, key %s (%s)", key.PartnerName, key.KeyID, key.Environment),
	}
	if confirmErr := confirmAction(confirmOpts, "revoke partner credential"); confirmErr != nil {
		return confirmErr
	}

	if revokeErr := svc.Revoke(ctx, opts.ID); revokeErr != nil {
		return fmt.Errorf("revoke key: %w", revokeErr)
	}

	return writef(os.Stdout, "Revoked key %s for partner %q.\n", key.KeyID, key.PartnerName)
}

func runListRequestLogs(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequestLogsFlags(args)
	if err != nil {
		return err
	}

	query := &model.RequestLogQuery{
		PartnerKeyID: opts.PartnerKeyID,
		Method:       strings.ToUpper(opts.Method),
		PathPrefix:   opts.PathPrefix,
		MinStatus:    opts.MinStatus,
		Limit:        opts.Limit,
	}
	if opts.Since > 0 {
		since := time.Now().Add(-opts.Since)
		query.Since = &since
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewRequestLogRepo(db, nil)
		entries, searchErr := repo.Search(ctx, query)
		if searchErr != nil {
			return fmt.Errorf("search request logs: %w", searchErr)
		}
		return renderRequestLogs(os.Stdout, entries)
	})
}

func newKeyService(cmdCtx *commandContext, db *sql.DB, invalidator service.KeyInvalidator) (*service.PartnerKeyService, error) {
	svc, err := service.NewPartnerKeyService(service.PartnerKeyServiceOptions{
		Repo:        newKeyRepo(cmdCtx, db),
		Config:      cmdCtx.Config.PartnerAuth,
		Invalidator: invalidator,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build key service: %w", err)
	}
	return svc, nil
}

func newKeyRepo(cmdCtx *commandContext, db *sql.DB) *data.PartnerKeyRepo {
	return data.NewPartnerKeyRepo(db, data.PartnerKeyRepoConfig{
		Logger:    cmdCtx.Logger,
		Encryptor: bootstrap.CreateEncryptor(cmdCtx.Config.PartnerAuth.EncryptionKey, cmdCtx.Logger),
	})
}

func activeKeys(keys []model.PartnerKey) []model.PartnerKey {
	out := make([]model.PartnerKey, 0, len(keys))
	for _, k := range keys {
		if k.IsActive {
			out = append(out, k)
		}
	}
	return out
}

func renderMintedKey(w io.Writer, minted *model.MintedKey) error {
	if minted == nil {
		return errors.New("minted key is required")
	}

	if err := writef(w, "Minted credential for partner %q (%s).\n\n", minted.Key.PartnerName, minted.Key.Environment); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", minted.Key.ID},
		{"API key", minted.APIKey},
		{"API secret", minted.APISecret},
		{"Webhook secret", minted.WebhookSecret},
		{"Rate limit/min", strconv.Itoa(minted.Key.RateLimitPerMinute)},
		{"Company", dashIfNil(minted.Key.CompanyID)},
		{"Expires", dashIfNilTime(minted.Key.ExpiresAt)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}

	return writeln(w, "\nStore the API secret and webhook secret now; they are not retrievable later.")
}

func renderKeyTable(w io.Writer, keys []model.PartnerKey) error {
	if len(keys) == 0 {
		return writeln(w, "No partner keys found.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tPARTNER\tKEY ID\tENV\tCOMPANY\tLIMIT/MIN\tACTIVE\tLAST USED\tEXPIRES"); err != nil {
		return err
	}
	for i := range keys {
		k := &keys[i]
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%t\t%s\t%s\n",
			k.ID,
			k.PartnerName,
			k.KeyID,
			k.Environment,
			dashIfNil(k.CompanyID),
			k.RateLimitPerMinute,
			k.IsActive,
			dashIfNilTime(k.LastUsedAt),
			dashIfNilTime(k.ExpiresAt),
		); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return writef(w, "\n%d key(s).\n", len(keys))
}

func renderRequestLogs(w io.Writer, entries []model.RequestLogEntry) error {
	if len(entries) == 0 {
		return writeln(w, "No request log entries found.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "TIME\tKEY\tMETHOD\tPATH\tSTATUS\tDURATION\tIP"); err != nil {
		return err
	}
	for i := range entries {
		e := &entries[i]
		if err := writef(tw, "%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			e.CreatedAt.Format(time.RFC3339),
			dashIfNil(e.PartnerKeyID),
			e.Method,
			e.Path,
			e.Status,
			e.DurationMS,
			e.IP,
		); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return writef(w, "\n%d entry(ies).\n", len(entries))
}

func dashIfNil(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func dashIfNilTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func parseMintKeyFlags(args []string) (mintKeyOptions, error) {
	fs := flag.NewFlagSet("mint-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := mintKeyOptions{
		Environment: string(model.EnvironmentTest),
		Timeout:     defaultCommandTimeout,
	}

	fs.StringVar(&opts.PartnerName, "name", "", "Partner name the credential belongs to (required)")
	fs.StringVar(&opts.Environment, "env", opts.Environment, "Key environment: test or live")
	fs.StringVar(&opts.CompanyID, "company", "", "Restrict the key to a single company ID")
	fs.IntVar(&opts.RateLimit, "rate-limit", 0, "Requests per minute (0 uses the configured default)")
	fs.DurationVar(&opts.TTL, "ttl", 0, "Key lifetime from now (0 means no expiry)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the command")

	if err := fs.Parse(args); err != nil {
		return mintKeyOptions{}, err
	}

	if strings.TrimSpace(opts.PartnerName) == "" {
		return mintKeyOptions{}, errors.New("--name is required")
	}
	if !model.Environment(opts.Environment).Valid() {
		return mintKeyOptions{}, fmt.Errorf("--env must be %q or %q", model.EnvironmentTest, model.EnvironmentLive)
	}
	if opts.RateLimit < 0 {
		return mintKeyOptions{}, errors.New("--rate-limit must be >= 0")
	}
	if opts.TTL < 0 {
		return mintKeyOptions{}, errors.New("--ttl must be >= 0")
	}
	if opts.Timeout <= 0 {
		return mintKeyOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseListKeysFlags(args []string) (listKeysOptions, error) {
	fs := flag.NewFlagSet("list-keys", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listKeysOptions{
		Timeout: defaultCommandTimeout,
	}

	fs.BoolVar(&opts.All, "all", false, "Include revoked keys")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the command")

	if err := fs.Parse(args); err != nil {
		return listKeysOptions{}, err
	}

	if opts.Timeout <= 0 {
		return listKeysOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseRevokeKeyFlags(args []string) (revokeKeyOptions, error) {
	fs := flag.NewFlagSet("revoke-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := revokeKeyOptions{
		Timeout: defaultCommandTimeout,
	}

	fs.StringVar(&opts.ID, "id", "", "Partner key record ID to revoke (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the command")

	if err := fs.Parse(args); err != nil {
		return revokeKeyOptions{}, err
	}

	if strings.TrimSpace(opts.ID) == "" {
		return revokeKeyOptions{}, errors.New("--id is required")
	}
	if opts.Timeout <= 0 {
		return revokeKeyOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseRequestLogsFlags(args []string) (requestLogsOptions, error) {
	fs := flag.NewFlagSet("list-request-logs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := requestLogsOptions{
		Limit:   50,
		Timeout: defaultCommandTimeout,
	}

	fs.StringVar(&opts.PartnerKeyID, "key", "", "Filter by partner key record ID")
	fs.StringVar(&opts.Method, "method", "", "Filter by HTTP method")
	fs.StringVar(&opts.PathPrefix, "path-prefix", "", "Filter by request path prefix")
	fs.IntVar(&opts.MinStatus, "min-status", 0, "Only include responses with at least this status code")
	fs.DurationVar(&opts.Since, "since", 0, "Only include requests newer than this age (0 means no constraint)")
	fs.IntVar(&opts.Limit, "limit", opts.Limit, "Maximum number of entries to return")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the command")

	if err := fs.Parse(args); err != nil {
		return requestLogsOptions{}, err
	}

	if opts.Limit <= 0 {
		return requestLogsOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.MinStatus < 0 {
		return requestLogsOptions{}, errors.New("--min-status must be >= 0")
	}
	if opts.Since < 0 {
		return requestLogsOptions{}, errors.New("--since must be >= 0")
	}
	if opts.Timeout <= 0 {
		return requestLogsOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

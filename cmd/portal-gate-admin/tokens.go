package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coverdesk/portal-gate/config"
	"github.com/coverdesk/portal-gate/internal/adapters/jwtsession"
	redisadapter "github.com/coverdesk/portal-gate/internal/adapters/redis"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/bootstrap"
)

const redisCommandTimeout = 30 * time.Second

type mintOptions struct {
	Role    string
	Subject string
	Email   string
	Name    string
	TTL     time.Duration
}

func runMintToken(cmdCtx *commandContext, args []string) error {
	var opts mintOptions
	fs := flag.NewFlagSet("mint-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Role, "role", "", "role claim (admin, agent, support, partner)")
	fs.StringVar(&opts.Subject, "subject", "", "subject (user id)")
	fs.StringVar(&opts.Email, "email", "", "email claim")
	fs.StringVar(&opts.Name, "name", "", "display name claim")
	fs.DurationVar(&opts.TTL, "ttl", 0, "token lifetime (default AUTH_JWT_TTL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, claims, err := mintToken(cmdCtx.Ctx, cmdCtx.Config.Auth, opts)
	if err != nil {
		return err
	}
	cmdCtx.Logger.InfoContext(cmdCtx.Ctx, "minted session token",
		"subject", claims.Subject,
		"role", claims.Role,
		"jti", claims.TokenID,
		"expires_at", claims.ExpiresAt)
	_, err = fmt.Fprintln(cmdCtx.Out, token)
	return err
}

func mintToken(ctx context.Context, auth config.AuthConfig, opts mintOptions) (string, domainauth.Claims, error) {
	if auth.JWT.Secret == "" {
		return "", domainauth.Claims{}, errors.New("mint-token: AUTH_JWT_SECRET is not set")
	}
	if strings.TrimSpace(opts.Subject) == "" {
		return "", domainauth.Claims{}, errors.New("mint-token: -subject is required")
	}
	role, ok := domainauth.ParseRole(opts.Role)
	if !ok {
		return "", domainauth.Claims{}, fmt.Errorf("mint-token: unknown role %q", opts.Role)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = auth.JWT.TTL
	}
	issuer, err := jwtsession.NewIssuer(jwtsession.Config{
		Secret:    []byte(auth.JWT.Secret),
		Algorithm: auth.JWT.Algorithm,
		Issuer:    auth.JWT.Issuer,
		Audience:  auth.JWT.Audience,
		TTL:       ttl,
		RoleClaim: auth.RoleClaim,
	})
	if err != nil {
		return "", domainauth.Claims{}, fmt.Errorf("mint-token: %w", err)
	}
	return issuer.Issue(ctx, domainauth.Identity{
		Subject: strings.TrimSpace(opts.Subject),
		Email:   opts.Email,
		Name:    opts.Name,
		Role:    role,
	})
}

//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectRedis(cmdCtx *commandContext) (redis.UniversalClient, error) {
	if !bootstrap.RedisConfigured(cmdCtx.Config.Redis) {
		return nil, errors.New("redis not configured (set REDIS_URI, REDIS_USE_SENTINEL, or REDIS_USE_CLUSTER)")
	}
	return bootstrap.ConnectRedis(cmdCtx.Ctx, bootstrap.RedisConnectConfig{
		Redis:  cmdCtx.Config.Redis,
		Logger: cmdCtx.Logger,
	})
}

func runRevoke(cmdCtx *commandContext, args []string) error {
	var until time.Duration
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.DurationVar(&until, "for", 0, "how long to keep the record (default AUTH_JWT_TTL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := fs.Args()
	if len(ids) == 0 {
		return errors.New("revoke: at least one token id is required")
	}
	if until <= 0 {
		until = cmdCtx.Config.Auth.JWT.TTL
	}

	client, err := connectRedis(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, redisCommandTimeout)
	defer cancel()
	store := redisadapter.NewRevocationStore(client, redisadapter.WithPrefix(cmdCtx.Config.Revocation.Prefix))
	return revokeIDs(ctx, cmdCtx.Out, store, ids, time.Now().Add(until))
}

type revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

func revokeIDs(ctx context.Context, w io.Writer, store revoker, ids []string, until time.Time) error {
	for _, id := range ids {
		if err := store.Revoke(ctx, id, until); err != nil {
			return fmt.Errorf("revoke %s: %w", id, err)
		}
		if _, err := fmt.Fprintf(w, "revoked %s until %s\n", id, until.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

func runListRevoked(cmdCtx *commandContext, _ []string) error {
	client, err := connectRedis(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, redisCommandTimeout)
	defer cancel()
	return listRevoked(ctx, cmdCtx.Out, client, cmdCtx.Config.Revocation.Prefix)
}

func listRevoked(ctx context.Context, w io.Writer, client redis.UniversalClient, prefix string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "TOKEN ID\tTTL"); err != nil {
		return err
	}
	total := 0
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := client.TTL(ctx, key).Result()
		ttlText := ttl.Round(time.Second).String()
		if err != nil {
			ttlText = "error: " + err.Error()
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", strings.TrimPrefix(key, prefix), ttlText); err != nil {
			return err
		}
		total++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal revoked: %d\n", total)
	return err
}

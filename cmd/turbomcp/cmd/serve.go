package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/turbomcp/turbomcp/internal/adapter/inbound/httptransport"
	"github.com/turbomcp/turbomcp/internal/adapter/inbound/stdio"
	"github.com/turbomcp/turbomcp/internal/adapter/inbound/tcp"
	"github.com/turbomcp/turbomcp/internal/adapter/inbound/unixsock"
	"github.com/turbomcp/turbomcp/internal/adapter/inbound/wstransport"
	"github.com/turbomcp/turbomcp/internal/adapter/outbound/memory"
	"github.com/turbomcp/turbomcp/internal/adapter/outbound/sqlitestore"
	"github.com/turbomcp/turbomcp/internal/config"
	"github.com/turbomcp/turbomcp/internal/domain/auth"
	"github.com/turbomcp/turbomcp/internal/domain/bidi"
	"github.com/turbomcp/turbomcp/internal/domain/ratelimit"
	"github.com/turbomcp/turbomcp/internal/domain/registry"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/internal/observability"
	"github.com/turbomcp/turbomcp/internal/security/audit"
	"github.com/turbomcp/turbomcp/internal/security/authn"
	"github.com/turbomcp/turbomcp/internal/security/authn/jwt"
	"github.com/turbomcp/turbomcp/internal/security/origin"
	secratelimit "github.com/turbomcp/turbomcp/internal/security/ratelimit"
	"github.com/turbomcp/turbomcp/internal/security/sessionsecurity"
	"github.com/turbomcp/turbomcp/internal/security/tlspolicy"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the TurboMCP server",
	Long: `Start the TurboMCP server on every transport enabled in config:
stdio, Streamable HTTP, WebSocket, TCP, and/or Unix domain socket.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (permissive defaults, verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionStore, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}
	sessions := session.NewManager(sessionStore, buildSessionConfig(cfg))

	authStore := buildAuthStore(cfg)
	apiKeyService := auth.NewAPIKeyService(authStore)

	limiter := memory.NewRateLimiter()
	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	sink, err := audit.NewSinkFromOutput(cfg.Audit.Output)
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}
	auditWriter := audit.NewWriter(sink, logger, audit.WithCapacity(cfg.Audit.ChannelSize))
	auditWriter.Start(ctx)
	defer auditWriter.Stop()

	recorder, promReg, err := buildObservability(cfg, logger)
	if err != nil {
		return fmt.Errorf("build observability: %w", err)
	}
	if cfg.Observability.PrometheusAddr != "" {
		startPrometheusServer(ctx, cfg.Observability.PrometheusAddr, promReg, logger)
	}

	reg := registry.New()

	secMgr := sessionsecurity.NewManager(sessions, sessionsecurity.Config{
		MaxSessionsPerAddr: cfg.Session.MaxPerRemoteAddr,
		BindRemoteAddr:     cfg.Session.BindRemoteAddr,
		RegenerateInterval: parseDurationOr(cfg.Session.RegenerateInterval, 0),
	})

	originPolicy := origin.Policy{AllowedOrigins: cfg.Origin.AllowedOrigins}

	rt := registry.NewRuntime(reg, logger, registry.WithRecorder(recorder))

	if cfg.Server.HTTP != nil {
		httpTransport, err := buildHTTPTransport(cfg, sessions, rt, apiKeyService, limiter, originPolicy, logger)
		if err != nil {
			return fmt.Errorf("build http transport: %w", err)
		}
		rt.SetHub(bidi.NewHub(httpTransport))

		go func() {
			if err := httpTransport.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("http transport stopped", "error", err)
			}
		}()
		logger.Info("streamable HTTP transport listening", "addr", cfg.Server.HTTP.Addr)
	}

	if cfg.Server.WebSocket != nil {
		ln, err := wstransport.Listen(cfg.Server.WebSocket.Addr, cfg.Server.WebSocket.Path, originPolicy)
		if err != nil {
			return fmt.Errorf("start websocket transport: %w", err)
		}
		go serveListener(ctx, ln, sessions, secMgr, rt, logger)
		logger.Info("websocket transport listening", "addr", cfg.Server.WebSocket.Addr, "path", cfg.Server.WebSocket.Path)
	}

	if cfg.Server.TCP != nil {
		ln, err := tcp.Listen(cfg.Server.TCP.Addr)
		if err != nil {
			return fmt.Errorf("start tcp transport: %w", err)
		}
		go serveListener(ctx, ln, sessions, secMgr, rt, logger)
		logger.Info("tcp transport listening", "addr", cfg.Server.TCP.Addr)
	}

	if cfg.Server.Unix != nil {
		ln, err := unixsock.Listen(cfg.Server.Unix.Path, cfg.Server.Unix.TrustPeerCredentials)
		if err != nil {
			return fmt.Errorf("start unix transport: %w", err)
		}
		go serveListener(ctx, ln, sessions, secMgr, rt, logger)
		logger.Info("unix socket transport listening", "path", cfg.Server.Unix.Path)
	}

	if cfg.Server.Stdio {
		go serveConn(ctx, stdio.NewStdio(), sessions, secMgr, rt, logger)
		logger.Info("stdio transport active")
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Session.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite session store: %w", err)
		}
		return store, nil
	default:
		return memory.NewSessionStore(), nil
	}
}

func buildSessionConfig(cfg *config.Config) session.Config {
	sc := session.Config{}
	if d, err := time.ParseDuration(cfg.Session.IdleTimeout); err == nil {
		sc.IdleTimeout = d
	}
	if d, err := time.ParseDuration(cfg.Session.MaxLifetime); err == nil {
		sc.MaxLifetime = d
	}
	return sc
}

// buildAuthStore seeds an in-memory auth store from config.
func buildAuthStore(cfg *config.Config) *memory.AuthStore {
	store := memory.NewAuthStore()
	for _, ident := range cfg.Auth.Identities {
		roles := make([]auth.Role, len(ident.Roles))
		for i, r := range ident.Roles {
			roles[i] = auth.Role(r)
		}
		store.AddIdentity(&auth.Identity{ID: ident.ID, Name: ident.Name, Roles: roles})
	}
	for _, k := range cfg.Auth.APIKeys {
		store.AddKey(&auth.APIKey{Key: k.KeyHash, IdentityID: k.IdentityID})
	}
	return store
}

func buildObservability(cfg *config.Config, logger *slog.Logger) (*observability.Recorder, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	var tp trace.TracerProvider
	if cfg.Observability.TracingEnabled {
		sdkTP, err := observability.NewTracerProvider(os.Stdout)
		if err != nil {
			return nil, nil, fmt.Errorf("build tracer provider: %w", err)
		}
		tp = sdkTP
	}

	var recorderOpts []observability.RecorderOption
	if cfg.Observability.MetricsEnabled {
		mp, err := observability.NewMeterProvider(os.Stdout)
		if err != nil {
			return nil, nil, fmt.Errorf("build meter provider: %w", err)
		}
		recorderOpts = append(recorderOpts, observability.WithMeterProvider(metric.MeterProvider(mp), logger))
	}

	return observability.NewRecorder(tp, reg, recorderOpts...), reg, nil
}

func startPrometheusServer(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("prometheus server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("prometheus metrics listening", "addr", addr)
}

// buildHTTPTransport wires the Streamable HTTP transport with its
// security middleware chain: API-key extraction, identity resolution,
// and rate limiting, in that order.
func buildHTTPTransport(
	cfg *config.Config,
	sessions *session.Manager,
	rt *registry.Runtime,
	apiKeyService *auth.APIKeyService,
	limiter ratelimit.RateLimiter,
	originPolicy origin.Policy,
	logger *slog.Logger,
) (*httptransport.Transport, error) {
	remoteIP := func(r *http.Request) string {
		return httptransport.RemoteIPFromContext(r.Context())
	}

	rlCfg := secratelimit.Config{
		Enabled:     cfg.RateLimit.Enabled,
		MaxRequests: cfg.RateLimit.Rate,
		Window:      parseDurationOr(cfg.RateLimit.Period, time.Minute),
	}

	identityMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := authn.APIKeyFromContext(r.Context()); raw != "" {
				if identity, err := apiKeyService.Validate(r.Context(), raw); err == nil {
					ctx := secratelimit.WithIdentity(r.Context(), identity.ID)
					ctx = withResolvedIdentity(ctx, identity)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}

	challenge := authn.ChallengeConfig{ResourceMetadata: cfg.Auth.ResourceMetadata, Scope: cfg.Auth.Scope}

	opts := []httptransport.Option{
		httptransport.WithAddr(cfg.Server.HTTP.Addr),
		httptransport.WithOriginPolicy(originPolicy),
		httptransport.WithLogger(logger),
		httptransport.WithIdentityResolver(resolvedIdentityFromContext),
		httptransport.WithMiddleware(authn.APIKeyMiddleware(authn.APIKeyConfig{Header: cfg.Auth.Header, Required: cfg.Auth.Required, Challenge: challenge})),
		httptransport.WithMiddleware(identityMiddleware),
		httptransport.WithMiddleware(secratelimit.Middleware(limiter, rlCfg, remoteIP)),
	}

	if cfg.Auth.JWT != nil {
		validator := buildJWTValidator(cfg.Auth.JWT)
		opts = append(opts, httptransport.WithMiddleware(authn.JWTMiddleware(validator, authn.JWTConfig{
			Header:    cfg.Auth.JWT.Header,
			Required:  cfg.Auth.JWT.Required,
			Challenge: challenge,
		})))
	}

	if t := cfg.Server.HTTP.TLS; t != nil && t.Enabled {
		tlsCfg, err := tlspolicy.Policy{
			Enabled:    true,
			CertFile:   t.CertFile,
			KeyFile:    t.KeyFile,
			Insecure:   t.Insecure,
			MinVersion: t.MinVersion,
		}.Build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, httptransport.WithTLSConfig(tlsCfg, t.CertFile, t.KeyFile))
	}

	return httptransport.New(sessions, rt, opts...), nil
}

// buildJWTValidator assembles a jwt.Validator from config: a JWKS-backed
// KeySource when JWKSURI is set (for asymmetric algorithms), a static
// secret when SymmetricSecret is set (for HMAC), or both at once when a
// deployment accepts either.
func buildJWTValidator(cfg *config.JWTConfig) *jwt.Validator {
	vCfg := jwt.Config{
		AllowedAlgorithms: cfg.AllowedAlgorithms,
		Issuer:            cfg.Issuer,
		Audience:          cfg.Audience,
		Leeway:            parseDurationOr(cfg.Leeway, 0),
	}
	if cfg.SymmetricSecret != "" {
		vCfg.SymmetricSecret = []byte(cfg.SymmetricSecret)
	}
	if cfg.JWKSURI != "" {
		cache := jwt.NewJWKSCache(http.DefaultClient, parseDurationOr(cfg.JWKSCacheTTL, 5*time.Minute))
		vCfg.KeySource = cache.BoundKeySource(cfg.JWKSURI)
	}
	if cfg.IntrospectionURL != "" {
		vCfg.Introspector = introspectionClient{endpoint: cfg.IntrospectionURL, client: http.DefaultClient}
	}
	return jwt.NewValidator(vCfg)
}

// introspectionClient implements jwt.Introspector against an RFC 7662
// token introspection endpoint.
type introspectionClient struct {
	endpoint string
	client   *http.Client
}

func (i introspectionClient) Active(ctx context.Context, rawToken string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint,
		strings.NewReader(url.Values{"token": {rawToken}}.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode)
	}

	var result struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode introspection response: %w", err)
	}
	return result.Active, nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

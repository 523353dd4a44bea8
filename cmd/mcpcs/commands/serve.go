package commands

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	mcpgateway "github.com/vikashloomba/mcpcs-go/pkg/mcp-gateway"
	"github.com/vikashloomba/mcpcs-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

var (
	serveOrigins []string
	serveJSON    bool
)

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "", "listen address (default 127.0.0.1:8765)")
	flags.String("token", "", "require this bearer token from clients")
	flags.StringSliceVar(&serveOrigins, "cors-origin", nil, "allow browser clients from these origins")
	flags.BoolVar(&serveJSON, "json-response", false, "answer with JSON bodies instead of SSE streams")
	_ = v.BindPFlag(mcpconfig.KeyGatewayAddr, flags.Lookup("addr"))
	_ = v.BindPFlag(mcpconfig.KeyGatewayToken, flags.Lookup("token"))
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve every configured server through one Streamable HTTP MCP endpoint",
	Long: `Serve the unified namespace over Streamable HTTP at /mcp.

Names unique across servers are exposed unchanged. Conflicting names are
exposed once per server as server__name, and conflicting resource URIs as
mcpgateway+server/resources::uri. GET /healthz lists connected servers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		g, m, err := current.gateway(ctx)
		if err != nil {
			return err
		}
		defer m.Close(context.WithoutCancel(ctx))

		opts := g.Options()
		current.logger.Info("gateway listening", "addr", opts.Addr, "path", opts.Path)
		if err := g.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// gateway connects every configured server and fronts them with a gateway
// that also answers GET /healthz.
func (a *app) gateway(ctx context.Context) (*mcpgateway.Gateway, *mcpmgr.Manager, error) {
	m, _, err := a.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	g, err := mcpgateway.NewGateway(m, gatewayOptions(a.settings))
	if err != nil {
		_ = m.Close(context.WithoutCancel(ctx))
		return nil, nil, err
	}
	g.ServeMux().HandleFunc("GET /healthz", healthz(m))
	return g, m, nil
}

func gatewayOptions(s *mcpconfig.Settings) *mcpgateway.Options {
	opts := &mcpgateway.Options{
		Addr:   s.GatewayAddr,
		Logger: current.logger,
	}
	opts.Streamable.JSONResponse = serveJSON
	if len(serveOrigins) > 0 {
		opts.CORS = &cors.Options{
			AllowedOrigins:   serveOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
			ExposedHeaders:   []string{"Mcp-Session-Id"},
			AllowCredentials: true,
		}
	}
	if s.GatewayToken != "" {
		opts.TokenVerifier = staticToken(s.GatewayToken)
	}
	return opts
}

// staticToken accepts exactly one shared bearer token.
func staticToken(want string) auth.TokenVerifier {
	return func(_ context.Context, token string, _ *http.Request) (*auth.TokenInfo, error) {
		if subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
			return nil, auth.ErrInvalidToken
		}
		return &auth.TokenInfo{Expiration: time.Now().Add(time.Hour)}, nil
	}
}

func healthz(m *mcpmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"servers": m.ListServers()})
	}
}

package localnet

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// LocalNet rejects requests that do not originate from a private
// network. The sync protocol is LAN-only: tokens ride in plain HTTP and
// must never be exposed to the public internet.
type LocalNet struct {
	log *slog.Logger
}

func New(log *slog.Logger) *LocalNet {
	return &LocalNet{
		log: log.With(slog.String("component", "localnet_middleware")),
	}
}

func (l *LocalNet) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		remote := ctx.RemoteAddr()
		host, _, err := net.SplitHostPort(remote)
		if err != nil {
			host = remote
		}

		if !IsPrivate(host) {
			l.log.Warn("rejected non-local request", slog.String("remote", remote))

			ctx.SetStatus(http.StatusForbidden)
			ctx.SetHeader("Content-Type", "application/json")
			if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
				"error": "Only local network requests allowed",
			}); err != nil {
				l.log.Error("failed to write localnet error", slog.String("error", err.Error()))
			}
			return
		}

		next(ctx)
	}
}

// IsPrivate reports whether addr is a loopback or RFC 1918 address.
func IsPrivate(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

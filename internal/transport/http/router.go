// Package httptransport exposes the craps server over HTTP and websockets.
package httptransport

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"craps-server/internal/config"
	"craps-server/internal/game/table"
	"craps-server/internal/realtime"
)

// HealthChecker reports database reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators of the router.
type Deps struct {
	Server       config.ServerConfig
	Realtime     bool
	HistoryLimit int
	AccessLog    io.Writer

	Accounts    Accounts
	Stats       Stats
	Rankings    Rankings
	Boosts      Boosts
	Memberships Memberships
	Claims      Claims
	DB          HealthChecker
	Rooms       *table.Manager
	Hub         *realtime.Hub
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) *chi.Mux {
	accountHandlers := NewAccountHandlers(d.Accounts, d.Rooms, d.Stats, d.Rankings, d.Boosts, d.Memberships, d.Claims)
	roomHandlers := NewRoomHandlers(d.Rooms, d.Hub, d.Accounts, d.Realtime, d.HistoryLimit)

	origins := d.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           60 * 15,
	}))
	if d.AccessLog != nil {
		r.Use(APILogMiddleware(d.AccessLog))
	}

	r.Post("/api/daily-bonus/claim", accountHandlers.ClaimDailyBonus())

	base := d.Server.BasePath
	if base == "" {
		base = "/"
	}
	r.Route(base, func(r chi.Router) {
		r.Get("/health", Health(d.DB, d.Realtime, d.Rooms))

		r.Group(func(r chi.Router) {
			r.Use(AnonKeyMiddleware(d.Server.AnonKey))

			r.Get("/balance/{userID}", accountHandlers.GetBalance())
			r.Post("/balance/{userID}", accountHandlers.UpdateBalance())

			r.Get("/rooms", roomHandlers.List())
			r.Post("/rooms/join", roomHandlers.Join())
			r.Route("/rooms/{roomID}", func(r chi.Router) {
				r.Get("/", roomHandlers.Game())
				r.Post("/leave", roomHandlers.Leave())
				r.Get("/history", roomHandlers.History())
				r.Post("/bets", roomHandlers.PlaceBet())
				r.Delete("/bets", roomHandlers.RemoveBet())
				r.Post("/roll", roomHandlers.Roll())
				r.Post("/shooter", roomHandlers.Shooter())
				r.Post("/settings", roomHandlers.Settings())
				r.Get("/ws", roomHandlers.Websocket())
			})

			r.Get("/stats/leaderboard", accountHandlers.Leaderboard())
			r.Get("/stats/{userID}", accountHandlers.Stats())
			r.Get("/sessions/{userID}", accountHandlers.Sessions())
			r.Get("/jackpot", accountHandlers.Jackpot())
			r.Post("/membership/confirm", accountHandlers.ConfirmMembership())

			r.Get("/boosts/{userID}", accountHandlers.Boosts())
			r.Post("/boosts/{userID}/purchase", accountHandlers.PurchaseBoost())
			r.Post("/boosts/{userID}/activate", accountHandlers.ActivateBoost())
		})
	})
	return r
}

// Health reports liveness, database reachability and whether realtime
// connections are accepted.
func Health(db HealthChecker, realtimeEnabled bool, rooms *table.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"realtime_available": realtimeEnabled,
			"rooms":              rooms.Count(),
			"time":               time.Now().UTC(),
		}
		if db != nil {
			if err := db.HealthCheck(r.Context()); err != nil {
				log.Warn().Err(err).Msg("Database health check failed")
				body["ok"] = false
				body["error"] = "database_unavailable"
				writeJSON(w, http.StatusServiceUnavailable, body)
				return
			}
		}
		writeOK(w, body)
	}
}

// LogRoutes logs every registered route at debug level.
func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: strings.TrimSuffix(route, "/*")})
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to walk routes")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	for _, rt := range routes {
		log.Debug().Str("method", rt.Method).Str("path", rt.Path).Msg("Route registered")
	}
}

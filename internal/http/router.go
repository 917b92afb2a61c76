package http

import (
	"log/slog"
	"net/http"
	"strings"
)

// RouterConfig wires the handlers and middleware into one http.Handler.
type RouterConfig struct {
	Auth         *AuthHandler
	Schedules    *ScheduleHandler
	Sessions     *SessionHandler
	Availability *AvailabilityHandler
	Bookings     *BookingHandler
	Rules        *RuleHandler
	Treatments   *TreatmentHandler

	// Validator guards the staff routes. Guest-facing reads and booking
	// operations stay open.
	Validator  SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the API router. Staff routes (grid editing, rules,
// materialization, slot generation, logout) require a session; the booking
// and availability surface is public.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireSession := func(h http.HandlerFunc) http.Handler {
		if cfg.Validator == nil {
			return h
		}
		return RequireSession(cfg.Validator, cfg.Logger)(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.Handle("/sessions/current", requireSession(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		}))
	}

	if cfg.Schedules != nil {
		mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Schedules.GetSchedule(w, r)
		})
		mux.Handle("/schedule/grid", requireSession(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Schedules.GetGrid(w, r)
			case http.MethodPost:
				cfg.Schedules.SaveGrid(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/schedule/grid/cell", requireSession(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Schedules.UpdateCell(w, r)
		}))
		mux.Handle("/schedule/materialize", requireSession(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Schedules.Materialize(w, r)
		}))
	}

	if cfg.Sessions != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sessions.List(w, r)
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
			id, found := strings.CutSuffix(rest, "/availability")
			if !found || id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sessions.GetAvailability(w, r, id)
		})
	}

	if cfg.Availability != nil {
		mux.HandleFunc("/availability", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Availability.Check(w, r)
		})
	}

	if cfg.Bookings != nil {
		mux.HandleFunc("/bookings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Bookings.Create(w, r)
		})
		mux.HandleFunc("/bookings/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/bookings/")
			switch {
			case strings.HasSuffix(rest, "/confirm"):
				id := strings.TrimSuffix(rest, "/confirm")
				if id == "" || r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Bookings.Confirm(w, r, id)
			case strings.HasSuffix(rest, "/cancel"):
				id := strings.TrimSuffix(rest, "/cancel")
				if id == "" || r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Bookings.Cancel(w, r, id)
			default:
				if rest == "" || strings.Contains(rest, "/") {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Bookings.Get(w, r, rest)
			}
		})
	}

	if cfg.Rules != nil {
		mux.Handle("/rules", requireSession(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Rules.List(w, r)
			case http.MethodPost:
				cfg.Rules.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/rules/", requireSession(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/rules/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodPut:
				cfg.Rules.Update(w, r, id)
			case http.MethodDelete:
				cfg.Rules.Delete(w, r, id)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Treatments != nil {
		mux.HandleFunc("/treatments/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/treatments/")
			id, found := strings.CutSuffix(rest, "/slots")
			if !found || id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Treatments.ListSlots(w, r, id)
			case http.MethodPost:
				requireSession(func(w http.ResponseWriter, r *http.Request) {
					cfg.Treatments.GenerateSlots(w, r, id)
				}).ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

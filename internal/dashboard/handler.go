package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2beens/fitdash/internal/activity"
	"github.com/2beens/fitdash/internal/middleware"
	"github.com/2beens/fitdash/internal/session"
	"github.com/2beens/fitdash/internal/telemetry/metrics"
	"github.com/2beens/fitdash/internal/telemetry/tracing"
	"github.com/2beens/fitdash/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxSessionBodyBytes = 16 << 10

type stateReader interface {
	State() activity.FetchState
}

type sessionManager interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) (bool, error)
}

type ActivityResponse struct {
	State activity.FetchState `json:"state"`
	Card  activity.CardView   `json:"card"`
}

type loginRequest struct {
	AccessToken string `json:"accessToken"`
}

type Handler struct {
	tracker     stateReader
	sessions    sessionManager
	versionInfo string
}

func NewHandler(tracker stateReader, sessions sessionManager, versionInfo string) *Handler {
	return &Handler{
		tracker:     tracker,
		sessions:    sessions,
		versionInfo: versionInfo,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	rateLimitPerMinute int,
	metricsManager *metrics.Manager,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET").Name("root")
	mainRouter.HandleFunc("/version", handler.handleVersion).Methods("GET").Name("version")
	mainRouter.HandleFunc("/activity", handler.handleGetActivity).Methods("GET", "OPTIONS").Name("activity")

	sessionRouter := mainRouter.PathPrefix("/session").Subrouter()
	sessionRouter.HandleFunc("", handler.handleLogin).Methods("POST", "OPTIONS").Name("login")
	sessionRouter.HandleFunc("", handler.handleLogout).Methods("DELETE").Name("logout")

	// rate limit the session endpoints to prevent abuse
	if rateLimiter != nil {
		sessionRouter.Use(middleware.RateLimit(rateLimiter, "session", rateLimitPerMinute, metricsManager))
	}
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.activity")
	defer span.End()

	state := handler.tracker.State()
	span.SetAttributes(attribute.String("fetch.phase", state.Phase.String()))

	pkg.WriteJSON(w, ActivityResponse{
		State: state,
		Card:  activity.Card(state),
	}, http.StatusOK)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.login")
	defer span.End()

	token, err := readAccessToken(w, r)
	if err != nil {
		span.SetStatus(codes.Error, "bad-request")
		log.Debugf("login: read access token: %s", err)
		http.Error(w, "invalid login request", http.StatusBadRequest)
		return
	}

	if err := handler.sessions.Login(ctx, token); err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, session.ErrEmptyToken):
			http.Error(w, "access token missing", http.StatusBadRequest)
		case errors.Is(err, session.ErrTokenExpired):
			http.Error(w, "access token expired", http.StatusUnauthorized)
		default:
			log.Errorf("login: %s", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
		}
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSON(w, map[string]bool{"loggedIn": true}, http.StatusOK)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.logout")
	defer span.End()

	loggedOut, err := handler.sessions.Logout(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("logout: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSON(w, map[string]bool{"loggedOut": loggedOut}, http.StatusOK)
}

// readAccessToken takes the token from a JSON body, or from the bearer
// Authorization header when the body has none.
func readAccessToken(w http.ResponseWriter, r *http.Request) (string, error) {
	var req loginRequest
	body := http.MaxBytesReader(w, r.Body, maxSessionBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if req.AccessToken != "" {
		return req.AccessToken, nil
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return token, nil
	}

	return "", nil
}

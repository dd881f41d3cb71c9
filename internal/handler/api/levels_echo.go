package api

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"GexFlow/internal/domain/models"
	"GexFlow/internal/service/ratelimit"
	"GexFlow/internal/usecase"
	xhttp "GexFlow/pkg/http"
	applogger "GexFlow/pkg/logger"
)

// Reload fans out to the provider's REST API, so each client gets a small
// token budget refilling at one reload per ten seconds.
const (
	reloadBurst  = 2
	reloadPerSec = 0.1
)

// LevelsHandler serves the read side: current snapshot, ranked levels and
// health. Reads never block the recompute loop beyond the store's swap.
type LevelsHandler struct {
	logger  *applogger.Logger
	monitor *usecase.LevelMonitor
	limiter *ratelimit.Limiter
}

func NewLevelsHandler(logger *applogger.Logger, monitor *usecase.LevelMonitor) *LevelsHandler {
	return &LevelsHandler{logger: logger, monitor: monitor, limiter: ratelimit.New()}
}

func (h *LevelsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/snapshot", h.Snapshot)
	g.GET("/levels", h.Levels)
	g.GET("/health", h.Health)
	g.POST("/reload", h.Reload)
}

func (h *LevelsHandler) Snapshot(c echo.Context) error {
	snap, ok := h.monitor.Store().Current()
	if !ok {
		return xhttp.NotFoundResponse(c, "no snapshot published yet")
	}
	return xhttp.SuccessResponse(c, models.NewSnapshotResponse(snap))
}

func (h *LevelsHandler) Levels(c echo.Context) error {
	req := &models.LevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, ok := h.monitor.Store().Current()
	if !ok {
		return xhttp.NotFoundResponse(c, "no snapshot published yet")
	}

	levels := make([]models.StrikeLevel, 0, len(snap.ByStrike))
	for strike, gex := range snap.ByStrike {
		levels = append(levels, models.StrikeLevel{
			Strike:          strike,
			Gex:             gex,
			NetGamma:        snap.NetGammaByStrike[strike],
			DistancePercent: math.Abs(snap.Spot-strike) / snap.Spot * 100,
		})
	}
	sort.Slice(levels, func(i, j int) bool {
		ai, aj := math.Abs(levels[i].Gex), math.Abs(levels[j].Gex)
		if ai != aj {
			return ai > aj
		}
		return levels[i].Strike < levels[j].Strike
	})
	if len(levels) > req.Top {
		levels = levels[:req.Top]
	}

	return xhttp.SuccessResponse(c, &models.LevelsResponse{
		Underlying: snap.Underlying,
		Spot:       snap.Spot,
		ComputedAt: snap.ComputedAt.UnixMilli(),
		Levels:     levels,
	})
}

func (h *LevelsHandler) Health(c echo.Context) error {
	status := map[string]interface{}{
		"loaded":    h.monitor.IsLoaded(),
		"connected": h.monitor.Connected(),
	}
	if snap, ok := h.monitor.Store().Current(); ok {
		status["snapshot_age_seconds"] = time.Since(snap.ComputedAt).Seconds()
	}
	return xhttp.SuccessResponse(c, status)
}

// Reload re-discovers the chain. This is the explicit re-trigger after a
// failed load; nothing retries automatically.
func (h *LevelsHandler) Reload(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), reloadBurst, reloadPerSec) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "too many reload requests", http.StatusTooManyRequests))
	}
	if err := h.monitor.Reload(c.Request().Context()); err != nil {
		h.logger.Error("reload failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(err.Error()))
	}
	return xhttp.SuccessResponse(c, "reloaded")
}

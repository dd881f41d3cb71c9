package repository

import (
	"context"
	"fmt"

	"GexFlow/internal/domain/models"
	"GexFlow/internal/domain/repository"
	applogger "GexFlow/pkg/logger"
	"GexFlow/pkg/util"
)

// LogAlertSink writes critical alerts as formatted log lines, the format
// downstream alerting tooling greps for.
type LogAlertSink struct {
	log *applogger.Logger
}

func NewLogAlertSink(log *applogger.Logger) repository.AlertSink {
	return &LogAlertSink{log: log}
}

func (s *LogAlertSink) Deliver(_ context.Context, a models.CriticalAlert) error {
	s.log.Warn(FormatAlert(a),
		applogger.String("underlying", a.Underlying),
		applogger.Float64("strike", a.Strike),
		applogger.Float64("gex", a.Gex))
	return nil
}

// FormatAlert renders the canonical alert line:
// "CRITICAL GAMMA LEVEL ALERT: 450.00 (GEX: 12.5M) - Distance: 1.3%"
func FormatAlert(a models.CriticalAlert) string {
	return fmt.Sprintf("CRITICAL GAMMA LEVEL ALERT: %.2f (GEX: %s) - Distance: %.1f%%",
		a.Strike, util.FormatMillions(a.Gex), a.DistancePercent)
}

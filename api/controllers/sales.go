package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/consumers/sales"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SalesReporter reads the daily counters kept by the order-events worker.
type SalesReporter interface {
	Report(ctx context.Context, at time.Time) (*sales.DailyReport, error)
}

// SalesDaily returns the order and unit counters for ?day=YYYY-MM-DD (UTC),
// defaulting to today.
func SalesDaily(reporter SalesReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reporter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales reporter unavailable"))
			return
		}

		at := time.Now().UTC()
		if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "day must be formatted as YYYY-MM-DD").
					WithDetails(map[string]any{"day": raw}))
				return
			}
			at = parsed
		}

		report, err := reporter.Report(r.Context(), at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales counters unavailable"))
			return
		}
		responses.WriteSuccess(w, report)
	}
}

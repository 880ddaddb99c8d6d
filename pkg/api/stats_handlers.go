package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/langschool/backoffice/pkg/stats"
)

// limitParam reads ?limit=, leaving out-of-range values to the reader.
func limitParam(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return stats.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	return n, nil
}

func (s *server) dashboard(c echo.Context) error {
	d, err := s.svc.Stats.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (s *server) liveStats(c echo.Context) error {
	live, err := s.svc.Stats.Live(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, live)
}

func (s *server) paymentStats(c echo.Context) error {
	summary, err := s.svc.Stats.Payments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *server) recentRegistrations(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	recent, err := s.svc.Stats.RecentRegistrations(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recent)
}

type upcomingClassResponse struct {
	stats.UpcomingClass
	Available int64 `json:"available_seats"`
}

func (s *server) upcomingClasses(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	classes, err := s.svc.Stats.UpcomingClasses(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	out := make([]upcomingClassResponse, 0, len(classes))
	for _, class := range classes {
		out = append(out, upcomingClassResponse{UpcomingClass: class, Available: class.Available()})
	}
	return c.JSON(http.StatusOK, out)
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	apperrors "creator-analytics/internal/errors"
	"creator-analytics/internal/models"
)

const dateLayout = "2006-01-02"

type snapshotQuery struct {
	ShopID    string
	DateRange *models.DateRange
}

// parseSnapshotQuery reads shop, from and to. Both dates are calendar days in
// UTC and inclusive; omitting both selects all time.
func parseSnapshotQuery(r *http.Request, defaultShop string) (snapshotQuery, error) {
	q := r.URL.Query()

	shop := strings.TrimSpace(q.Get("shop"))
	if shop == "" {
		shop = defaultShop
	}
	if shop == "" {
		return snapshotQuery{}, apperrors.BadRequest("shop query parameter is required")
	}

	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" && to == "" {
		return snapshotQuery{ShopID: shop}, nil
	}

	dr := &models.DateRange{}
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return snapshotQuery{}, apperrors.BadRequestWrap(err, "from must be a date in YYYY-MM-DD form")
		}
		dr.Start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return snapshotQuery{}, apperrors.BadRequestWrap(err, "to must be a date in YYYY-MM-DD form")
		}
		if !dr.Start.IsZero() && dr.Start.After(t) {
			return snapshotQuery{}, apperrors.ValidationWrap(models.ErrInvalidDateRange, "from must not be after to")
		}
		dr.End = t.AddDate(0, 0, 1)
	}

	return snapshotQuery{ShopID: shop, DateRange: dr}, nil
}

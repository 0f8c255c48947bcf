package transform

import (
	"time"

	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
)

// After keeps the rows played strictly after the watermark. Rows without a played_at are dropped.
func After(rows []model.Row, watermark time.Time) []model.Row {
	return lo.Filter(rows, func(row model.Row, _ int) bool {
		playedAt, ok := row[schema.PlayedAtColumn].(time.Time)
		return ok && playedAt.After(watermark)
	})
}

package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
)

// RecentlyPlayed fetches a single page of the user's listening history. The after
// cursor is advisory: the provider returns recent history regardless of it, so
// callers must deduplicate against their own watermark.
func (a *API) RecentlyPlayed(ctx context.Context, accessToken string, after int64) ([]model.RawEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/v1/me/player/recently-played", nil)
	if err != nil {
		return nil, fmt.Errorf("creating recently played request: %w", err)
	}
	queryParams := req.URL.Query()
	queryParams.Add("limit", strconv.Itoa(PageSize))
	queryParams.Add("after", strconv.FormatInt(after, 10))
	req.URL.RawQuery = queryParams.Encode()
	setBearer(req, accessToken)

	body, err := a.do(req, "recently played")
	if err != nil {
		return nil, err
	}
	return items(body, "items")
}

// Artists fetches the catalog entries of up to PageSize artists. Unknown ids are skipped.
func (a *API) Artists(ctx context.Context, accessToken string, ids []string) ([]model.RawEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > PageSize {
		return nil, fmt.Errorf("too many artist ids: %d, max %d", len(ids), PageSize)
	}
	for _, id := range ids {
		if id == "" || strings.Contains(id, ",") {
			return nil, errors.New("invalid artist id")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/v1/artists", nil)
	if err != nil {
		return nil, fmt.Errorf("creating artists request: %w", err)
	}
	queryParams := req.URL.Query()
	queryParams.Add("ids", strings.Join(ids, ","))
	req.URL.RawQuery = queryParams.Encode()
	setBearer(req, accessToken)

	body, err := a.do(req, "artists")
	if err != nil {
		return nil, err
	}
	return items(body, "artists")
}

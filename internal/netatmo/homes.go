package netatmo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	homesDataPath      = "/api/homesdata"
	switchSchedulePath = "/api/switchhomeschedule"
)

// HomesData fetches the homes visible to the token. A non-empty homeID
// restricts the result to that home.
func (c *Client) HomesData(ctx context.Context, homeID string) (*HomesData, error) {
	params := url.Values{}
	if homeID != "" {
		params.Set("home_id", homeID)
	}

	var data HomesData
	if err := c.call(ctx, http.MethodGet, homesDataPath, params, &data); err != nil {
		return nil, err
	}

	return &data, nil
}

// SwitchHomeSchedule makes scheduleID the active heating schedule of homeID.
func (c *Client) SwitchHomeSchedule(ctx context.Context, homeID, scheduleID string) error {
	if homeID == "" || scheduleID == "" {
		return errors.New("netatmo: home id and schedule id are required")
	}

	params := url.Values{
		"home_id":     {homeID},
		"schedule_id": {scheduleID},
	}

	if err := c.call(ctx, http.MethodPost, switchSchedulePath, params, nil); err != nil {
		return fmt.Errorf("switching schedule of home %s: %w", homeID, err)
	}

	return nil
}

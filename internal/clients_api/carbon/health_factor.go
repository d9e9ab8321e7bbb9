package carbon

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"demex-health-bot/internal/infra/log"

	"go.uber.org/zap"
)

// healthFactorResponse is the payload of /carbon/cdp/v1/health_factor/{address}.
// The field is kept raw because the API has returned it both as a number and
// as a quoted decimal string.
type healthFactorResponse struct {
	HealthFactor json.RawMessage `json:"health_factor"`
}

// HealthFactor fetches the current health factor for a Demex address.
// A missing health_factor field parses as 0 rather than an error: the API
// omits the field for addresses with no open position, and treating that as
// "factor 0" is the contract the alerting layer relies on.
// Non-200 responses, network failures and malformed payloads all come back
// as a single error outcome; the cause is logged here.
func (c *Client) HealthFactor(ctx context.Context, address string) (float64, error) {
	endpoint := fmt.Sprintf("/carbon/cdp/v1/health_factor/%s", address)

	respBody, err := c.doGET(ctx, endpoint)
	if err != nil {
		log.LogError("Failed to fetch health factor", zap.String("address", address), zap.Error(err))
		return 0, fmt.Errorf("failed to fetch health factor: %w", err)
	}

	var hfResp healthFactorResponse
	if err := json.Unmarshal(respBody, &hfResp); err != nil {
		log.LogError("Malformed health factor payload", zap.String("address", address), zap.Error(err))
		return 0, fmt.Errorf("failed to unmarshal health factor response: %w", err)
	}

	if len(hfResp.HealthFactor) == 0 {
		// Absent field, see the contract note above
		return 0, nil
	}

	value, err := parseHealthFactor(hfResp.HealthFactor)
	if err != nil {
		log.LogError("Unparseable health factor value", zap.String("address", address), zap.Error(err))
		return 0, fmt.Errorf("failed to parse health factor value: %w", err)
	}

	return value, nil
}

// parseHealthFactor accepts both a JSON number and a quoted decimal string.
func parseHealthFactor(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return 0, nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return value, nil
}

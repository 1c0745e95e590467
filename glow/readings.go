// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"context"
	"net/url"
	"strconv"
	"time"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
)

// GetReading returns time series data for a resource between from and to,
// aggregated at the given period. offsetMinutes shifts timestamps from UTC
// and function selects the aggregation (usually "sum" or "avg").
func (c *Client) GetReading(ctx context.Context, resourceID string, from, to time.Time, period Period, offsetMinutes int, function string) (*Reading, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("from", from.Format(TimeLayout))
	params.Set("to", to.Format(TimeLayout))
	params.Set("period", string(period))
	params.Set("offset", strconv.Itoa(offsetMinutes))
	params.Set("function", function)

	reqURL := c.baseURL + "/resource/" + resourceID + "/readings?" + params.Encode()
	data, contentType := c.post(ctx, "readings", reqURL, token, nil)

	var reading Reading
	if err := decodeJSON("readings", data, contentType, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// GetCurrentResource returns the instantaneous data for a resource. For gas
// resources the service returns a meter read here; see GetGasCurrent.
func (c *Client) GetCurrentResource(ctx context.Context, resourceID string) (*Reading, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, contentType := c.post(ctx, "current", c.baseURL+"/resource/"+resourceID+"/current", token, nil)

	var reading Reading
	if err := decodeJSON("current", data, contentType, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// GetElectricityCurrent returns the instantaneous electricity usage with the
// tariff rate, standing charge and a computed cost attached.
//
// The service's own cost resource is broken for current usage, so the cost is
// derived locally from the usage figure and the tariff.
func (c *Client) GetElectricityCurrent(ctx context.Context) (*Reading, error) {
	id, err := c.ElectricityResourceID()
	if err != nil {
		return nil, err
	}

	cur, err := c.GetCurrentResource(ctx, id)
	if err != nil {
		return nil, err
	}

	rate, standing, err := c.tariffRates(ctx, ClassifierElectricity, id)
	if err != nil {
		return nil, err
	}
	cur.Rate = rate
	cur.Standing = standing
	if len(cur.Data) > 0 {
		cur.Cost = ToCost(rate, cur.Data[0].Value, cur.Units)
	}
	return cur, nil
}

// GetGasCurrent returns the latest gas usage with tariff and cost attached.
//
// The current-resource endpoint returns a meter read for gas, so the usage
// figure is taken from a 30 minute summed reading window ending now and
// substituted over the first data point. Gas meters report every 30 minutes;
// this is as close to realtime as the data gets.
func (c *Client) GetGasCurrent(ctx context.Context) (*Reading, error) {
	id, err := c.GasResourceID()
	if err != nil {
		return nil, err
	}

	now := c.now().Truncate(time.Minute)
	window, err := c.GetReading(ctx, id, now.Add(-30*time.Minute), now, PeriodHalfHour, 0, "sum")
	if err != nil {
		return nil, err
	}

	cur, err := c.GetCurrentResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(window.Data) > 0 {
		if len(cur.Data) > 0 {
			cur.Data[0] = window.Data[0]
		} else {
			cur.Data = append(cur.Data, window.Data[0])
		}
	}

	rate, standing, err := c.tariffRates(ctx, ClassifierGas, id)
	if err != nil {
		return nil, err
	}
	cur.Rate = rate
	cur.Standing = standing
	if len(cur.Data) > 0 {
		cur.Cost = ToCost(rate, cur.Data[0].Value, cur.Units)
	}
	return cur, nil
}

// GetElectricityTariff returns the electricity tariff details.
func (c *Client) GetElectricityTariff(ctx context.Context) (*Tariff, error) {
	id, err := c.ElectricityResourceID()
	if err != nil {
		return nil, err
	}
	return c.getTariff(ctx, id)
}

// GetGasTariff returns the gas tariff details.
func (c *Client) GetGasTariff(ctx context.Context) (*Tariff, error) {
	id, err := c.GasResourceID()
	if err != nil {
		return nil, err
	}
	return c.getTariff(ctx, id)
}

// GetElectricityMeterRead returns the electricity meter reading.
func (c *Client) GetElectricityMeterRead(ctx context.Context) (*Reading, error) {
	id, err := c.ElectricityResourceID()
	if err != nil {
		return nil, err
	}
	return c.getMeterRead(ctx, id)
}

// GetGasMeterRead returns the gas meter reading.
//
// The meter-read endpoint is broken for gas and appears to hand back the
// electricity reading, while the current-resource endpoint returns a gas
// meter read in cubic-metre units. The first data point is rebuilt from the
// latter, scaled by 1000.
func (c *Client) GetGasMeterRead(ctx context.Context) (*Reading, error) {
	id, err := c.GasResourceID()
	if err != nil {
		return nil, err
	}

	read, err := c.getMeterRead(ctx, id)
	if err != nil {
		return nil, err
	}

	cur, err := c.GetCurrentResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(read.Data) > 0 && len(cur.Data) > 0 {
		read.Data[0].Timestamp = cur.Data[0].Timestamp
		read.Data[0].Value = cur.Data[0].Value * 1000
	}
	return read, nil
}

func (c *Client) getTariff(ctx context.Context, resourceID string) (*Tariff, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, contentType := c.post(ctx, "tariff", c.baseURL+"/resource/"+resourceID+"/tariff", token, nil)

	var tariff Tariff
	if err := decodeJSON("tariff", data, contentType, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (c *Client) getMeterRead(ctx context.Context, resourceID string) (*Reading, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, contentType := c.post(ctx, "meterread", c.baseURL+"/resource/"+resourceID+"/meterread", token, nil)

	var reading Reading
	if err := decodeJSON("meterread", data, contentType, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// tariffRates extracts the unit rate and standing charge from a tariff. The
// service puts the rate in the first plan detail entry and the standing
// charge in the second.
func (c *Client) tariffRates(ctx context.Context, classifier, resourceID string) (rate, standing float64, err error) {
	tariff, err := c.getTariff(ctx, resourceID)
	if err != nil {
		return 0, 0, err
	}
	if len(tariff.Data) == 0 || len(tariff.Data[0].Plan) == 0 || len(tariff.Data[0].Plan[0].PlanDetail) < 2 {
		return 0, 0, gerrors.NewResourceError("tariff", classifier, resourceID, gerrors.ErrMalformedResponse)
	}
	detail := tariff.Data[0].Plan[0].PlanDetail
	return detail[0].Rate, detail[1].Standing, nil
}

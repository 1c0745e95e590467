// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Classifiers the client records resource IDs for. The account listing
// usually also carries *.consumption.cost classifiers, which are ignored.
const (
	ClassifierElectricity = "electricity.consumption"
	ClassifierGas         = "gas.consumption"
)

// TimeLayout is the local date-time format the readings endpoint expects.
// No timezone offset is embedded; the offset query parameter carries the
// caller's UTC offset in minutes instead.
const TimeLayout = "2006-01-02T15:04:05"

// Period is the ISO 8601 aggregation granularity of a time-series query.
type Period string

// Supported aggregation periods. Minute-level data is documented as
// electricity-only; the client does not reject it for gas, the service
// decides.
const (
	PeriodMinute   Period = "PT1M"
	PeriodHalfHour Period = "PT30M"
	PeriodHour     Period = "PT1H"
	PeriodDay      Period = "P1D"
	PeriodWeek     Period = "P1W"
	PeriodMonth    Period = "P1M"
	PeriodYear     Period = "P1Y"
)

// Credentials identifies the calling application and user to the metering
// service. Supplied at construction and immutable for the life of the client.
type Credentials struct {
	AppID    string
	Username string
	Password string
}

// Session holds the authenticated state for one account. All fields are
// replaced together whenever the client re-authenticates.
type Session struct {
	Token                   string
	Expiry                  time.Time
	AccountID               string
	FunctionalGroupAccounts json.RawMessage
	UserGroups              json.RawMessage
}

// Resource describes one data stream available to the account.
type Resource struct {
	ResourceID  string `json:"resourceId"`
	Classifier  string `json:"classifier"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	BaseUnit    string `json:"baseUnit,omitempty"`
}

// DataPoint is one (timestamp, value) pair in a reading. The service
// serialises points as two-element arrays.
type DataPoint struct {
	Timestamp int64   // Unix epoch seconds
	Value     float64 // Usage value in the reading's unit
}

// UnmarshalJSON decodes a [timestamp, value] array.
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("data point is not a [timestamp, value] pair: %w", err)
	}
	p.Timestamp = int64(pair[0])
	p.Value = pair[1]
	return nil
}

// MarshalJSON encodes the point back to a [timestamp, value] array.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp), p.Value})
}

// Time returns the point's timestamp as a time.Time.
func (p DataPoint) Time() time.Time {
	return time.Unix(p.Timestamp, 0)
}

// Reading is a time series of data points for one resource, plus the derived
// rate, standing charge and cost fields filled in by the current-usage
// accessors. Readings are constructed fresh per call and never cached.
type Reading struct {
	Status     string      `json:"status,omitempty"`
	Name       string      `json:"name,omitempty"`
	ResourceID string      `json:"resourceId,omitempty"`
	Classifier string      `json:"classifier,omitempty"`
	Units      string      `json:"units,omitempty"`
	Data       []DataPoint `json:"data"`

	// Derived fields, present only on the *Current accessors
	Rate     float64 `json:"rate,omitempty"`
	Standing float64 `json:"standing,omitempty"`
	Cost     float64 `json:"cost,omitempty"`
}

// Tariff is the plan structure returned by the tariff sub-resource.
// Rate lives at plan detail index 0 and standing charge at index 1,
// per the service contract.
type Tariff struct {
	Status string       `json:"status,omitempty"`
	Name   string       `json:"name,omitempty"`
	Data   []TariffData `json:"data"`
}

// TariffData is one tariff entry in a tariff response.
type TariffData struct {
	From string       `json:"from,omitempty"`
	Plan []TariffPlan `json:"plan"`
}

// TariffPlan is one plan inside a tariff entry.
type TariffPlan struct {
	PlanDetail []PlanDetail `json:"planDetail"`
}

// PlanDetail carries either a unit rate or a standing charge.
type PlanDetail struct {
	Rate     float64 `json:"rate,omitempty"`
	Standing float64 `json:"standing,omitempty"`
}

// authResponse is the body returned by the auth endpoint.
type authResponse struct {
	Token                   string          `json:"token"`
	Exp                     int64           `json:"exp"`
	AccountID               string          `json:"accountId"`
	FunctionalGroupAccounts json.RawMessage `json:"functionalGroupAccounts"`
	UserGroups              json.RawMessage `json:"userGroups"`
}

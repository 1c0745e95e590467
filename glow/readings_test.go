// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
)

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

// newAPIClient builds a client whose fake service routes sub-resource paths
// to the given handlers, on top of the standard auth and listing endpoints.
func newAPIClient(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	t.Helper()
	svc := &fakeService{extra: func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		t.Errorf("unexpected request path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}}
	return newTestClient(t, svc)
}

const testTariff = `{
	"status": "OK",
	"data": [{"from": "2026-01-01", "plan": [{"planDetail": [{"rate": 0.15}, {"standing": 0.25}]}]}]
}`

func TestGetReading(t *testing.T) {
	var gotQuery map[string]string
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/elec-1/readings": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = map[string]string{}
			for k := range r.URL.Query() {
				gotQuery[k] = r.URL.Query().Get(k)
			}
			jsonHandler(`{
				"status": "OK", "resourceId": "elec-1", "units": "kWh",
				"data": [[1756600200, 0.5], [1756602000, 0.7]]
			}`)(w, r)
		},
	})

	from := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)
	reading, err := client.GetReading(context.Background(), "elec-1", from, to, PeriodHalfHour, 60, "sum")
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}

	want := map[string]string{
		"from":     "2026-08-31T10:00:00",
		"to":       "2026-08-31T11:00:00",
		"period":   "PT30M",
		"offset":   "60",
		"function": "sum",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(reading.Data) != 2 {
		t.Fatalf("got %d data points, want 2", len(reading.Data))
	}
	if reading.Data[0].Timestamp != 1756600200 || reading.Data[0].Value != 0.5 {
		t.Errorf("first point = %+v, want [1756600200, 0.5]", reading.Data[0])
	}
	if reading.Units != "kWh" {
		t.Errorf("units = %q, want kWh", reading.Units)
	}
}

func TestGetElectricityCurrent(t *testing.T) {
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/elec-1/current": jsonHandler(`{
			"status": "OK", "resourceId": "elec-1", "units": "W",
			"data": [[1756600200, 2000]]
		}`),
		"/resource/elec-1/tariff": jsonHandler(testTariff),
	})

	cur, err := client.GetElectricityCurrent(context.Background())
	if err != nil {
		t.Fatalf("GetElectricityCurrent failed: %v", err)
	}
	if cur.Rate != 0.15 {
		t.Errorf("rate = %v, want 0.15", cur.Rate)
	}
	if cur.Standing != 0.25 {
		t.Errorf("standing = %v, want 0.25", cur.Standing)
	}
	if math.Abs(cur.Cost-0.3) > 1e-9 {
		t.Errorf("cost = %v, want 0.3 for 2000 W at 0.15/kWh", cur.Cost)
	}
	if len(cur.Data) != 1 || cur.Data[0].Value != 2000 {
		t.Errorf("usage data altered: %+v", cur.Data)
	}
}

func TestGetGasCurrentSubstitutesWindowReading(t *testing.T) {
	var gotQuery map[string]string
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/gas-1/current": jsonHandler(`{
			"status": "OK", "resourceId": "gas-1", "units": "kWh",
			"data": [[1756600000, 5]]
		}`),
		"/resource/gas-1/readings": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = map[string]string{}
			for k := range r.URL.Query() {
				gotQuery[k] = r.URL.Query().Get(k)
			}
			jsonHandler(`{
				"status": "OK", "resourceId": "gas-1", "units": "kWh",
				"data": [[1756601800, 7]]
			}`)(w, r)
		},
		"/resource/gas-1/tariff": jsonHandler(testTariff),
	})

	now := time.Date(2026, 8, 31, 12, 15, 30, 0, time.UTC)
	client.now = func() time.Time { return now }

	cur, err := client.GetGasCurrent(context.Background())
	if err != nil {
		t.Fatalf("GetGasCurrent failed: %v", err)
	}

	// The 30 minute summed window replaces the meter-read style point.
	if len(cur.Data) != 1 {
		t.Fatalf("got %d data points, want 1", len(cur.Data))
	}
	if cur.Data[0].Timestamp != 1756601800 || cur.Data[0].Value != 7 {
		t.Errorf("first point = %+v, want the window point [1756601800, 7]", cur.Data[0])
	}
	if math.Abs(cur.Cost-ToCost(0.15, 7, "kWh")) > 1e-9 {
		t.Errorf("cost = %v, want %v", cur.Cost, ToCost(0.15, 7, "kWh"))
	}

	want := map[string]string{
		"from":     "2026-08-31T11:45:00",
		"to":       "2026-08-31T12:15:00",
		"period":   "PT30M",
		"offset":   "0",
		"function": "sum",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("window query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestGetGasCurrentEmptyWindowKeepsOriginal(t *testing.T) {
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/gas-1/current": jsonHandler(`{
			"status": "OK", "resourceId": "gas-1", "units": "kWh",
			"data": [[1756600000, 5]]
		}`),
		"/resource/gas-1/readings": jsonHandler(`{"status": "OK", "data": []}`),
		"/resource/gas-1/tariff":   jsonHandler(testTariff),
	})

	cur, err := client.GetGasCurrent(context.Background())
	if err != nil {
		t.Fatalf("GetGasCurrent failed: %v", err)
	}
	if len(cur.Data) != 1 || cur.Data[0].Value != 5 {
		t.Errorf("data = %+v, want the original point kept when the window is empty", cur.Data)
	}
}

func TestGetGasMeterRead(t *testing.T) {
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/gas-1/meterread": jsonHandler(`{
			"status": "OK", "resourceId": "gas-1", "units": "m3",
			"data": [[1756600000, 100]]
		}`),
		"/resource/gas-1/current": jsonHandler(`{
			"status": "OK", "resourceId": "gas-1", "units": "kWh",
			"data": [[1756603600, 3]]
		}`),
	})

	read, err := client.GetGasMeterRead(context.Background())
	if err != nil {
		t.Fatalf("GetGasMeterRead failed: %v", err)
	}
	if len(read.Data) != 1 {
		t.Fatalf("got %d data points, want 1", len(read.Data))
	}
	if read.Data[0].Timestamp != 1756603600 {
		t.Errorf("timestamp = %d, want the current fetch's 1756603600", read.Data[0].Timestamp)
	}
	if read.Data[0].Value != 3000 {
		t.Errorf("value = %v, want 3 scaled to 3000", read.Data[0].Value)
	}
}

func TestGetElectricityMeterReadPassthrough(t *testing.T) {
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/elec-1/meterread": jsonHandler(`{
			"status": "OK", "resourceId": "elec-1", "units": "kWh",
			"data": [[1756600000, 43210.5]]
		}`),
	})

	read, err := client.GetElectricityMeterRead(context.Background())
	if err != nil {
		t.Fatalf("GetElectricityMeterRead failed: %v", err)
	}
	if len(read.Data) != 1 || read.Data[0].Value != 43210.5 {
		t.Errorf("data = %+v, want the reading untouched", read.Data)
	}
}

func TestGetElectricityCurrentTruncatedTariff(t *testing.T) {
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/elec-1/current": jsonHandler(`{
			"status": "OK", "units": "W", "data": [[1756600200, 2000]]
		}`),
		"/resource/elec-1/tariff": jsonHandler(`{
			"status": "OK",
			"data": [{"plan": [{"planDetail": [{"rate": 0.15}]}]}]
		}`),
	})

	if _, err := client.GetElectricityCurrent(context.Background()); !errors.Is(err, gerrors.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse for a tariff without a standing entry, got %v", err)
	}
}

func TestGetCurrentResourceUnavailable(t *testing.T) {
	client := newAPIClient(t, map[string]http.HandlerFunc{
		"/resource/elec-1/current": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		},
	})

	if _, err := client.GetCurrentResource(context.Background(), "elec-1"); !errors.Is(err, gerrors.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse for a rejected fetch, got %v", err)
	}
}

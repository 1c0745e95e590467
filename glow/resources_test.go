// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
)

// newListingClient builds a client against a server whose /resource endpoint
// serves the given body.
func newListingClient(t *testing.T, listing string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth":
			fmt.Fprint(w, authBody("tok-1", time.Now().Add(time.Hour)))
		case "/resource":
			fmt.Fprint(w, listing)
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client, err := New(context.Background(), testCredentials(), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestListResourcesLastOccurrenceWins(t *testing.T) {
	client := newListingClient(t, `[
		{"resourceId": "elec-old", "classifier": "electricity.consumption"},
		{"resourceId": "gas-old", "classifier": "gas.consumption"},
		{"resourceId": "elec-cost", "classifier": "electricity.consumption.cost"},
		{"resourceId": "elec-new", "classifier": "electricity.consumption"},
		{"resourceId": "gas-new", "classifier": "gas.consumption"}
	]`)

	resources, err := client.ListResources(context.Background())
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(resources) != 5 {
		t.Errorf("got %d resources, want 5", len(resources))
	}

	elec, err := client.ElectricityResourceID()
	if err != nil {
		t.Fatalf("ElectricityResourceID failed: %v", err)
	}
	if elec != "elec-new" {
		t.Errorf("electricity resource = %q, want the later elec-new", elec)
	}
	gas, err := client.GasResourceID()
	if err != nil {
		t.Fatalf("GasResourceID failed: %v", err)
	}
	if gas != "gas-new" {
		t.Errorf("gas resource = %q, want the later gas-new", gas)
	}
}

func TestCostClassifiersIgnored(t *testing.T) {
	client := newListingClient(t, `[
		{"resourceId": "elec-cost", "classifier": "electricity.consumption.cost"},
		{"resourceId": "gas-cost", "classifier": "gas.consumption.cost"}
	]`)

	if _, err := client.ElectricityResourceID(); !errors.Is(err, gerrors.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound for cost-only listing, got %v", err)
	}
	if _, err := client.GasResourceID(); !errors.Is(err, gerrors.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound for cost-only listing, got %v", err)
	}
}

func TestResourceIDAbsentForMissingSupply(t *testing.T) {
	client := newListingClient(t, `[
		{"resourceId": "elec-1", "classifier": "electricity.consumption"}
	]`)

	_, err := client.GasResourceID()
	if !errors.Is(err, gerrors.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	if !gerrors.IsResourceError(err) {
		t.Errorf("expected a resource error, got %T", err)
	}
}

func TestListResourcesMalformedListing(t *testing.T) {
	client := newListingClient(t, `[]`)

	// Swap the listing for a non-list body after login succeeded.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"not": "a list"}`)
	}))
	t.Cleanup(server.Close)
	client.baseURL = server.URL

	if _, err := client.ListResources(context.Background()); !errors.Is(err, gerrors.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

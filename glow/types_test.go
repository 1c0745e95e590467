// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"encoding/json"
	"testing"
)

func TestDataPointPairDecoding(t *testing.T) {
	var p DataPoint
	if err := json.Unmarshal([]byte(`[1756600200, 0.5]`), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.Timestamp != 1756600200 || p.Value != 0.5 {
		t.Errorf("point = %+v, want [1756600200, 0.5]", p)
	}
	if p.Time().Unix() != 1756600200 {
		t.Errorf("Time() = %v, want unix 1756600200", p.Time())
	}

	if err := json.Unmarshal([]byte(`{"t": 1, "v": 2}`), &p); err == nil {
		t.Error("expected an error for a non-pair point")
	}
}

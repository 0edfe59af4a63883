package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPostTimeAcceptsNaiveAndZonedInput(t *testing.T) {
	testCases := []struct {
		input string
		want  time.Time
	}{
		{input: `"2024-06-01T12:30:00"`, want: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)},
		{input: `"2024-06-01T12:30:00.250"`, want: time.Date(2024, 6, 1, 12, 30, 0, 250_000_000, time.UTC)},
		{input: `"2024-06-01 12:30:00"`, want: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)},
		{input: `"2024-06-01T14:30:00+02:00"`, want: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)},
	}
	for _, testCase := range testCases {
		var parsed postTime
		if err := json.Unmarshal([]byte(testCase.input), &parsed); err != nil {
			t.Fatalf("%s: unexpected error %v", testCase.input, err)
		}
		if !parsed.Equal(testCase.want) {
			t.Fatalf("%s: got %v, want %v", testCase.input, parsed.Time, testCase.want)
		}
	}

	for _, invalid := range []string{`null`, `12`, `"tomorrow"`} {
		var parsed postTime
		if err := json.Unmarshal([]byte(invalid), &parsed); err == nil {
			t.Fatalf("%s: expected error", invalid)
		}
	}
}

func TestPostTimeMarshalsWithoutZone(t *testing.T) {
	encoded, err := json.Marshal(postTime{Time: time.Date(2024, 6, 1, 14, 30, 0, 500_000_000, time.FixedZone("x", 2*3600))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(encoded) != `"2024-06-01T12:30:00.5"` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}

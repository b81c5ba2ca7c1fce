package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestExpiresFromResponse(t *testing.T) {
	defaultTTL := 10 * time.Minute

	tests := []struct {
		name    string
		headers http.Header
		want    time.Duration
	}{
		{
			name:    "no headers uses default",
			headers: http.Header{},
			want:    defaultTTL,
		},
		{
			name:    "max-age",
			headers: http.Header{"Cache-Control": []string{"public, max-age=120"}},
			want:    2 * time.Minute,
		},
		{
			name:    "no-store",
			headers: http.Header{"Cache-Control": []string{"no-store"}},
			want:    0,
		},
		{
			name:    "max-age zero",
			headers: http.Header{"Cache-Control": []string{"max-age=0"}},
			want:    0,
		},
		{
			name: "cache-control beats expires",
			headers: http.Header{
				"Cache-Control": []string{"max-age=60"},
				"Expires":       []string{time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)},
			},
			want: time.Minute,
		},
		{
			name:    "expires header",
			headers: http.Header{"Expires": []string{time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)}},
			want:    time.Hour,
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": []string{time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)}},
			want:    0,
		},
		{
			name:    "invalid expires uses default",
			headers: http.Header{"Expires": []string{"not a valid date"}},
			want:    defaultTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: tt.headers}
			got := time.Until(ExpiresFromResponse(resp, defaultTTL))
			if got < 0 {
				got = 0
			}

			diff := got - tt.want
			if diff < 0 {
				diff = -diff
			}
			if diff > 2*time.Second {
				t.Errorf("ExpiresFromResponse() TTL = %v, want approximately %v", got, tt.want)
			}
		})
	}
}

func TestExpiresFromResponse_NilResponse(t *testing.T) {
	if got := ExpiresFromResponse(nil, time.Hour); time.Until(got) > time.Second {
		t.Errorf("ExpiresFromResponse(nil) = %v, want now", got)
	}
}

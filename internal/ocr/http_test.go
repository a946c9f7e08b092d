package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

func TestHTTPEngine_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req httpRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		png, err := base64.StdEncoding.DecodeString(req.Image)
		if assert.NoError(t, err) && assert.Greater(t, len(png), 4) {
			assert.Equal(t, "\x89PNG", string(png[:4]))
		}

		_, _ = w.Write([]byte(`{"code":0,"results":[
			{"box":[[1,2],[101,2],[101,22],[1,22]],"text":"发票号码08527037","score":0.97}
		]}`))
	}))
	defer srv.Close()

	e := NewHTTPEngine(HTTPConfig{URL: srv.URL, APIKey: "k"}, zap.NewNop())
	regions, err := e.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "发票号码08527037", regions[0].Text)
	assert.InDelta(t, 0.97, regions[0].Confidence, 1e-9)
	assert.Equal(t, 101.0, regions[0].BoundingBox[2].X)
}

func TestHTTPEngine_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{"server error is retryable", http.StatusBadGateway, "", common.CodeEngineError},
		{"client error is input", http.StatusUnprocessableEntity, "", common.CodeDecodeError},
		{"rate limited is retryable", http.StatusTooManyRequests, "", common.CodeEngineError},
		{"request timeout is retryable", http.StatusRequestTimeout, "", common.CodeEngineError},
		{"non-zero code", http.StatusOK, `{"code":3,"message":"busy"}`, common.CodeEngineError},
		{"garbage body", http.StatusOK, `<html>`, common.CodeEngineError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTPEngine(HTTPConfig{URL: srv.URL}, nil).Recognize(context.Background(), testImage())
			require.Error(t, err)
			assert.Equal(t, tc.code, common.CodeOf(err))
		})
	}
}

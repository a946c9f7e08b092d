package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

const maxEngineResponse = 16 << 20

type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// HTTPEngine calls a remote detection+recognition service (RapidOCR-style
// JSON) with the image as base64 PNG.
type HTTPEngine struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

type httpRequest struct {
	ID    string `json:"id,omitempty"`
	Image string `json:"image"`
}

type httpRegion struct {
	Box   [][2]float64 `json:"box"`
	Text  string       `json:"text"`
	Score float64      `json:"score"`
}

type httpResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message,omitempty"`
	Results []httpRegion `json:"results"`
}

func NewHTTPEngine(cfg HTTPConfig, logger *zap.Logger) *HTTPEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPEngine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: common.LoggerOrNop(logger),
	}
}

func (e *HTTPEngine) Name() string { return KindHTTP }

func (e *HTTPEngine) Recognize(ctx context.Context, img Image) ([]entity.TextRegion, error) {
	if img.Pixels == nil {
		return nil, common.NewInputError(common.CodeDecodeError, "no pixels to recognize", nil)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Pixels, imaging.PNG); err != nil {
		return nil, common.NewEngineError("encode png", err)
	}

	headers := map[string]string{}
	if e.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + e.cfg.APIKey
	}
	body := httpRequest{ID: img.Fingerprint, Image: base64.StdEncoding.EncodeToString(buf.Bytes())}

	raw, status, err := sendJSON(ctx, e.client, e.cfg.URL, body, headers, e.logger)
	if err != nil {
		if status >= 400 && status < 500 && !transientStatus(status) {
			return nil, common.NewInputError(common.CodeDecodeError, fmt.Sprintf("engine rejected image (status %d)", status), err)
		}
		return nil, engineFailure(ctx, "http engine", err)
	}

	var resp httpResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, common.NewEngineError("decode engine response", err)
	}
	if resp.Code != 0 {
		return nil, common.NewEngineError(fmt.Sprintf("engine returned code %d: %s", resp.Code, resp.Message), nil)
	}

	out := make([]entity.TextRegion, 0, len(resp.Results))
	for _, r := range resp.Results {
		var box [4]entity.Point
		for i := 0; i < len(r.Box) && i < 4; i++ {
			box[i] = entity.Point{X: r.Box[i][0], Y: r.Box[i][1]}
		}
		out = append(out, entity.TextRegion{Text: r.Text, BoundingBox: box, Confidence: r.Score})
	}
	return out, nil
}

// transientStatus reports client-range statuses that describe the engine's
// load rather than the image; they are retried like server errors.
func transientStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// sendJSON posts body as JSON and returns the raw response body and status.
func sendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *zap.Logger) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	// Default headers; allow caller overrides.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("ocr.http.request",
		zap.String("req_id", reqID),
		zap.String("url", url),
		zap.Int("content_length", len(bs)),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("ocr.http.send_error", zap.String("req_id", reqID), zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("ocr.http.response_body_close_error", zap.String("req_id", reqID), zap.Error(err))
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEngineResponse))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Debug("ocr.http.response",
		zap.String("req_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

func defaultConfig(t *testing.T) *common.Config {
	t.Helper()
	v := viper.New()
	common.SetDefaults(v)
	var cfg common.Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Image.Preprocess = false
	return &cfg
}

func invoiceRegions() []entity.TextRegion {
	texts := []string{"广东增值税电子普通发票", "发票代码144032509110", "发票号码08527037", "开票日期20250319", "校验码c7c7c"}
	out := make([]entity.TextRegion, len(texts))
	for i, t := range texts {
		out[i] = entity.TextRegion{Text: t, Confidence: 0.95, BoundingBox: entity.BoxFromRect(10, float64(10+i*40), 300, 30)}
	}
	return out
}

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 32))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.Set(5, 5, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type countingEngine struct {
	ocr.Engine
	calls atomic.Int32
}

func (e *countingEngine) Recognize(ctx context.Context, img ocr.Image) ([]entity.TextRegion, error) {
	e.calls.Add(1)
	return e.Engine.Recognize(ctx, img)
}

func newTestService(t *testing.T, cfg *common.Config) (*Service, *countingEngine) {
	t.Helper()
	eng := &countingEngine{Engine: ocr.NewFixtureEngine(ocr.FixtureSet{Default: invoiceRegions()})}
	svc, err := New(context.Background(), cfg, zap.NewNop(), WithEngine(eng), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, eng
}

func TestService_RecognizeUsesCache(t *testing.T) {
	svc, eng := newTestService(t, defaultConfig(t))
	ctx := context.Background()
	data := pngBytes(t, 255)

	rec, err := svc.Recognize(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceTypeVATElectronicGeneral, rec.Type.Code)
	f, ok := rec.Field(constants.FieldInvoiceCode)
	require.True(t, ok)
	assert.Equal(t, "144032509110", f.NormalizedValue)
	assert.Greater(t, rec.OverallConfidence, 0.0)

	again, err := svc.Recognize(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, again.Fingerprint)
	assert.Equal(t, rec.Fields, again.Fields)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestService_RecognizeRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig(t))
	_, err := svc.Recognize(context.Background(), []byte("not an image"))
	require.Error(t, err)
	assert.Equal(t, common.CodeDecodeError, common.CodeOf(err))
}

func TestService_BatchArchivesAndReportsStatus(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "records.db")
	cfg.Batch.Archive = true
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	res, err := svc.RecognizeBatch(ctx, batch.Request{Items: []batch.Item{
		{ID: "good", Data: pngBytes(t, 250)},
		{ID: "bad", Data: []byte("garbage")},
	}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, constants.ItemStatusSuccess, res.Items[0].Status)
	assert.Equal(t, constants.ItemStatusFailed, res.Items[1].Status)
	assert.Equal(t, common.CodeDecodeError, res.Items[1].Error.Code)

	st, err := svc.BatchStatus(res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStateCompleted, st.State)
	assert.Equal(t, 2, st.Completed)

	cancelled, err := svc.CancelBatch(res.BatchID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NotNil(t, svc.Records())
	archived, err := svc.Records().ListByBatch(ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "good", archived[0].ItemID)
	assert.NoError(t, svc.Ping(ctx))
}

func TestService_ClassifyAndTypes(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig(t))

	got := svc.Classify(invoiceRegions())
	require.NotEmpty(t, got)
	assert.Equal(t, constants.InvoiceTypeVATElectronicGeneral, got[0].Code)

	text := svc.ClassifyText("hello")
	require.Len(t, text, 1)
	assert.Equal(t, constants.InvoiceTypeUnknown, text[0].Code)

	types := svc.SupportedTypes()
	assert.Len(t, types, len(constants.InvoiceTypes()))
	assert.Equal(t, constants.InvoiceTypeVATSpecial, types[0].Code)
	assert.Equal(t, ocr.KindFixture, svc.EngineName())
}

func TestService_UnknownBatch(t *testing.T) {
	svc, _ := newTestService(t, defaultConfig(t))
	_, err := svc.BatchStatus("nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNew_FixtureEngineFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	raw, err := json.Marshal(ocr.FixtureSet{Default: invoiceRegions()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	cfg := defaultConfig(t)
	cfg.Engine.Kind = ocr.KindFixture
	cfg.Engine.FixturePath = path
	cfg.Cache.Backend = "none"
	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	rec, err := svc.Recognize(context.Background(), pngBytes(t, 200))
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceTypeVATElectronicGeneral, rec.Type.Code)
	assert.Nil(t, svc.Records())
}

func TestNew_BadConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Engine.Kind = "abacus"
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfigError, common.CodeOf(err))
}

func TestService_RecognizeURL(t *testing.T) {
	data := pngBytes(t, 240)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer ts.Close()

	cfg := defaultConfig(t)
	cfg.Image.AllowInsecure = true
	svc, _ := newTestService(t, cfg)

	rec, err := svc.RecognizeURL(context.Background(), ts.URL+"/invoice.png")
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceTypeVATElectronicGeneral, rec.Type.Code)

	_, err = svc.RecognizeURL(context.Background(), "ftp://example.com/x.png")
	assert.Error(t, err)
}

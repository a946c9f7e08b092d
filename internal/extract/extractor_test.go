package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
)

func newTestExtractor(penalty float64) *Extractor {
	lib := fields.NewLibrary(fields.WithClock(func() time.Time {
		return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	}))
	return NewExtractor(lib, Config{InvalidFieldPenalty: penalty}, zap.NewNop())
}

func regions(conf float64, texts ...string) []entity.TextRegion {
	out := make([]entity.TextRegion, len(texts))
	for i, t := range texts {
		out[i] = entity.TextRegion{Text: t, Confidence: conf, BoundingBox: entity.BoxFromRect(0, float64(i*30), 200, 20)}
	}
	return out
}

func TestExtractFields_ElectronicGeneralInvoice(t *testing.T) {
	e := newTestExtractor(0.5)
	got := e.ExtractFields(
		regions(0.92, "发票代码144032509110", "发票号码08527037", "开票日期20250319", "校验码c7c7c"),
		constants.InvoiceTypeVATElectronicGeneral,
	)

	require.Len(t, got, 4)
	want := map[constants.FieldName]string{
		constants.FieldInvoiceCode:   "144032509110",
		constants.FieldInvoiceNumber: "08527037",
		constants.FieldInvoiceDate:   "2025-03-19",
		constants.FieldCheckCode:     "c7c7c",
	}
	for name, v := range want {
		f, ok := got[name]
		require.True(t, ok, name)
		assert.Equal(t, v, f.NormalizedValue, name)
		assert.True(t, f.Valid, name)
		assert.InDelta(t, 0.92, f.Confidence, 1e-9, name)
	}
	_, ok := got[constants.FieldTotalAmount]
	assert.False(t, ok, "missing fields are omitted")
}

func TestExtractFields_OnlyApplicableFields(t *testing.T) {
	e := newTestExtractor(0.5)
	got := e.ExtractFields(
		regions(0.9, "发票代码4403251130", "校验码12345678901234567890", "机器编号499098765432"),
		constants.InvoiceTypeVATSpecial,
	)
	assert.Contains(t, got, constants.FieldInvoiceCode)
	assert.NotContains(t, got, constants.FieldCheckCode)
	assert.NotContains(t, got, constants.FieldMachineNumber)
}

func TestExtractFields_InvalidValuePenalized(t *testing.T) {
	e := newTestExtractor(0.5)
	got := e.ExtractFields(regions(0.9, "发票代码1440325"), constants.InvoiceTypeVATGeneral)

	f, ok := got[constants.FieldInvoiceCode]
	require.True(t, ok)
	assert.False(t, f.Valid)
	assert.Equal(t, "1440325", f.RawValue)
	assert.InDelta(t, 0.45, f.Confidence, 1e-9)
}

func TestExtractFields_UnknownTypeSkipsMachineNumber(t *testing.T) {
	e := newTestExtractor(0.5)
	got := e.ExtractFields(regions(0.8, "机器编号499098765432", "发票号码08527037"), "no-such-type")
	assert.NotContains(t, got, constants.FieldMachineNumber)
	assert.Contains(t, got, constants.FieldInvoiceNumber)
}

func TestExtractFields_SourceRegionsPointAtInputPositions(t *testing.T) {
	e := newTestExtractor(0.5)
	rs := []entity.TextRegion{
		{Text: "开票日期2025-03-19", Confidence: 0.9, BoundingBox: entity.BoxFromRect(0, 200, 100, 20)},
		{Text: "发票号码08527037", Confidence: 0.9, BoundingBox: entity.BoxFromRect(0, 10, 100, 20)},
	}
	got := e.ExtractFields(rs, constants.InvoiceTypeUnknown)
	assert.Equal(t, []int{0}, got[constants.FieldInvoiceDate].SourceRegions)
	assert.Equal(t, []int{1}, got[constants.FieldInvoiceNumber].SourceRegions)
}

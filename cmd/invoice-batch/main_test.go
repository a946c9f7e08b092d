package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useFixtureEngine(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.json")
	raw, err := json.Marshal(ocr.FixtureSet{Default: []entity.TextRegion{
		{Text: "增值税电子普通发票", Confidence: 0.9, BoundingBox: entity.BoxFromRect(0, 0, 200, 20)},
		{Text: "发票号码08527037", Confidence: 0.9, BoundingBox: entity.BoxFromRect(0, 30, 200, 20)},
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv("INVOICE_OCR_ENGINE_KIND", "fixture")
	t.Setenv("INVOICE_OCR_ENGINE_FIXTURE_PATH", path)
	t.Setenv("INVOICE_OCR_LOG_LEVEL", "error")
	t.Setenv("INVOICE_OCR_IMAGE_PREPROCESS", "false")
}

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestClassifyCommand(t *testing.T) {
	t.Setenv("INVOICE_OCR_LOG_LEVEL", "error")
	out, err := execute(t, "classify", "增值税专用发票 抵扣联")
	require.NoError(t, err)

	var cands []entity.InvoiceTypeCandidate
	require.NoError(t, json.Unmarshal([]byte(out), &cands))
	require.NotEmpty(t, cands)
	assert.NotEqual(t, constants.InvoiceTypeUnknown, cands[0].Code)
}

func TestTypesCommand(t *testing.T) {
	t.Setenv("INVOICE_OCR_LOG_LEVEL", "error")
	out, err := execute(t, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "增值税专用发票")
	assert.Contains(t, out, "CODE")
}

func TestBatchCommand_Directory(t *testing.T) {
	useFixtureEngine(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 255)
	writePNG(t, filepath.Join(dir, "b.png"), 128)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	xlsx := filepath.Join(t.TempDir(), "out.xlsx")

	out, err := execute(t, "batch", "--dir", dir, "--parallel", "2", "--xlsx", xlsx)
	require.NoError(t, err)

	var res entity.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 2)
	assert.Equal(t, "a.png", res.Items[0].ID)
	assert.Equal(t, constants.ItemStatusSuccess, res.Items[0].Status)
	assert.Equal(t, constants.InvoiceTypeVATElectronicGeneral, res.Items[0].Record.Type.Code)
	assert.Equal(t, constants.BatchStateCompleted, res.State)

	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBatchCommand_NeedsOneSource(t *testing.T) {
	t.Setenv("INVOICE_OCR_LOG_LEVEL", "error")
	batchDir, batchManifest = "", ""
	_, err := execute(t, "batch")
	assert.Error(t, err)
}

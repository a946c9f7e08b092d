package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

func TestFixtureEngine_ByFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"default": [{"text":"fallback","confidence":0.5}],
		"images": {"abc": [{"text":"发票代码144032509110","confidence":0.9}]}
	}`), 0o644))

	e, err := LoadFixtureEngine(path)
	require.NoError(t, err)

	got, err := e.Recognize(context.Background(), Image{Fingerprint: "abc"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "发票代码144032509110", got[0].Text)

	got, err = e.Recognize(context.Background(), Image{Fingerprint: "other"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", got[0].Text)
}

func TestFixtureEngine_ReturnsCopies(t *testing.T) {
	e := NewFixtureEngine(FixtureSet{Images: map[string][]entity.TextRegion{"a": {{Text: "x"}}}})
	got, err := e.Recognize(context.Background(), Image{Fingerprint: "a"})
	require.NoError(t, err)
	got[0].Text = "mutated"

	again, err := e.Recognize(context.Background(), Image{Fingerprint: "a"})
	require.NoError(t, err)
	assert.Equal(t, "x", again[0].Text)
}

func TestNewEngine_Kinds(t *testing.T) {
	e, err := NewEngine(common.EngineConfig{Kind: KindHTTP, URL: "http://localhost"}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindHTTP, e.Name())

	e, err = NewEngine(common.EngineConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindTesseract, e.Name())

	_, err = NewEngine(common.EngineConfig{Kind: "magic"}, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfigError, common.CodeOf(err))

	_, err = NewEngine(common.EngineConfig{Kind: KindFixture, FixturePath: "/does/not/exist.json"}, nil)
	require.Error(t, err)
}

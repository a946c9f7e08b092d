package manifest

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "imgs", "a.png"), "png-bytes")
	inline := base64.StdEncoding.EncodeToString([]byte("inline-bytes"))
	writeFile(t, filepath.Join(dir, "batch.json"), `{
		"parallel_count": 2,
		"item_timeout": "1.5s",
		"overall_deadline": "2m",
		"items": [
			{"id": "a", "path": "imgs/a.png"},
			{"id": "b", "image_data": "`+inline+`"},
			{"id": "c", "image_url": "https://example.com/c.jpg"}
		]
	}`)

	m, err := Load(filepath.Join(dir, "batch.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "imgs", "a.png"), m.Items[0].Path)

	req, err := m.Request()
	require.NoError(t, err)
	assert.Equal(t, 2, req.ParallelCount)
	assert.Equal(t, 1500*time.Millisecond, req.ItemTimeout)
	assert.Equal(t, 2*time.Minute, req.OverallDeadline)
	require.Len(t, req.Items, 3)
	assert.Equal(t, []byte("png-bytes"), req.Items[0].Data)
	assert.Equal(t, []byte("inline-bytes"), req.Items[1].Data)
	assert.Empty(t, req.Items[2].Data)
	assert.Equal(t, "https://example.com/c.jpg", req.Items[2].URL)
}

func TestValidate_RejectsBadManifests(t *testing.T) {
	cases := map[string]string{
		"not json":            `{`,
		"no items":            `{"items": []}`,
		"missing id":          `{"items": [{"path": "a.png"}]}`,
		"no source":           `{"items": [{"id": "a"}]}`,
		"two sources":         `{"items": [{"id": "a", "path": "a.png", "image_url": "https://x/a.png"}]}`,
		"bad duration":        `{"item_timeout": "soon", "items": [{"id": "a", "path": "a.png"}]}`,
		"zero parallel":       `{"parallel_count": 0, "items": [{"id": "a", "path": "a.png"}]}`,
		"unknown field":       `{"priority": 1, "items": [{"id": "a", "path": "a.png"}]}`,
		"non http url scheme": `{"items": [{"id": "a", "image_url": "ftp://x/a.png"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, common.CodeMalformedBatch, common.CodeOf(err))
		})
	}
}

func TestRequest_MissingFile(t *testing.T) {
	m, err := Parse([]byte(`{"items": [{"id": "a", "path": "/does/not/exist.png"}]}`))
	require.NoError(t, err)
	_, err = m.Request()
	assert.Error(t, err)
}

func TestRequest_BadBase64StaysWithItem(t *testing.T) {
	m, err := Parse([]byte(`{"items": [{"id": "a", "image_data": "%%%"}]}`))
	require.NoError(t, err)
	req, err := m.Request()
	require.NoError(t, err)
	assert.Equal(t, []byte("%%%"), req.Items[0].Data)
}

// Package manifest loads batch manifests: JSON files listing the images of
// one batch along with its parallelism and time budgets.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/imageproc"
)

//go:embed manifest.schema.json
var schemaJSON []byte

var schema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add manifest schema: %v", err))
	}
	return c.MustCompile("manifest.schema.json")
}

// Manifest mirrors the JSON document.
type Manifest struct {
	BatchID         string `json:"batch_id,omitempty"`
	ParallelCount   int    `json:"parallel_count,omitempty"`
	ItemTimeout     string `json:"item_timeout,omitempty"`
	OverallDeadline string `json:"overall_deadline,omitempty"`
	Items           []Item `json:"items"`
}

type Item struct {
	ID        string `json:"id"`
	Path      string `json:"path,omitempty"`
	ImageData string `json:"image_data,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Validate checks raw manifest JSON against the embedded schema.
func Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return common.NewInputError(common.CodeMalformedBatch, "manifest is not valid JSON", err)
	}
	if err := schema.Validate(v); err != nil {
		return common.NewInputError(common.CodeMalformedBatch, fmt.Sprintf("manifest does not match schema: %v", err), err)
	}
	return nil
}

// Parse validates data and decodes it.
func Parse(data []byte) (*Manifest, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.NewInputError(common.CodeMalformedBatch, "decode manifest", err)
	}
	return &m, nil
}

// Load reads and parses the manifest at path. Relative item paths are
// resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read manifest %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range m.Items {
		if p := m.Items[i].Path; p != "" && !filepath.IsAbs(p) {
			m.Items[i].Path = filepath.Join(dir, p)
		}
	}
	return m, nil
}

// Request reads every referenced file and builds the batch request.
// Items with a URL are left for the orchestrator to fetch.
func (m *Manifest) Request() (batch.Request, error) {
	req := batch.Request{BatchID: m.BatchID, ParallelCount: m.ParallelCount}

	var err error
	if req.ItemTimeout, err = parseDuration("item_timeout", m.ItemTimeout); err != nil {
		return batch.Request{}, err
	}
	if req.OverallDeadline, err = parseDuration("overall_deadline", m.OverallDeadline); err != nil {
		return batch.Request{}, err
	}

	req.Items = make([]batch.Item, 0, len(m.Items))
	for _, it := range m.Items {
		item := batch.Item{ID: it.ID, URL: it.ImageURL}
		switch {
		case it.Path != "":
			data, err := os.ReadFile(it.Path)
			if err != nil {
				return batch.Request{}, eris.Wrapf(err, "read item %s", it.ID)
			}
			item.Data = data
		case it.ImageData != "":
			data, err := imageproc.DecodeBase64(it.ImageData)
			if err != nil {
				// left undecodable so the item alone fails with decode_error
				data = []byte(it.ImageData)
			}
			item.Data = data
		}
		req.Items = append(req.Items, item)
	}
	return req, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, common.NewInputError(common.CodeMalformedBatch, fmt.Sprintf("%s: %v", field, err), err)
	}
	return d, nil
}

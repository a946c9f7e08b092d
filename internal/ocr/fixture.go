package ocr

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// FixtureSet is the on-disk format of the fixture engine:
//
//	{"default": [...regions], "images": {"<sha256>": [...regions]}}
type FixtureSet struct {
	Default []entity.TextRegion            `json:"default,omitempty"`
	Images  map[string][]entity.TextRegion `json:"images"`
}

// FixtureEngine returns canned regions keyed by image fingerprint. Images
// with no entry get Default, which may be empty.
type FixtureEngine struct {
	set FixtureSet
}

func NewFixtureEngine(set FixtureSet) *FixtureEngine {
	if set.Images == nil {
		set.Images = map[string][]entity.TextRegion{}
	}
	return &FixtureEngine{set: set}
}

// LoadFixtureEngine reads a FixtureSet from a JSON file.
func LoadFixtureEngine(path string) (*FixtureEngine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read fixtures %s", path)
	}
	var set FixtureSet
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, eris.Wrapf(err, "decode fixtures %s", path)
	}
	return NewFixtureEngine(set), nil
}

func (e *FixtureEngine) Name() string { return KindFixture }

func (e *FixtureEngine) Recognize(ctx context.Context, img Image) ([]entity.TextRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, engineFailure(ctx, "fixture engine", err)
	}
	regions, ok := e.set.Images[img.Fingerprint]
	if !ok {
		regions = e.set.Default
	}
	return append([]entity.TextRegion(nil), regions...), nil
}

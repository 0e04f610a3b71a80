package config

import (
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultParams_Valid(t *testing.T) {
	assert.NoError(t, DefaultAnchorParams.Validate())
	assert.NoError(t, DefaultRPNTargetParams.Validate())
	assert.NoError(t, DefaultProposalParams.Validate())
	assert.NoError(t, DefaultPipelineParams.Validate())
	assert.NoError(t, DefaultClassCatalog.Validate())
}

func TestAnchorParams_Validate(t *testing.T) {
	assert.Error(t, NewAnchorParams(0, []float32{1}, []float32{64}).Validate())
	assert.Error(t, NewAnchorParams(16, nil, []float32{64}).Validate())
	assert.Error(t, NewAnchorParams(16, []float32{1}, nil).Validate())
	assert.Error(t, NewAnchorParams(16, []float32{-0.5, 1}, []float32{64}).Validate())
	assert.Error(t, NewAnchorParams(16, []float32{1}, []float32{64, 0}).Validate())
	assert.NoError(t, NewAnchorParams(16, []float32{1}, []float32{64}).Validate())
}

func TestAnchorParams_AnchorCount(t *testing.T) {
	assert.Equal(t, 9, DefaultAnchorParams.AnchorCount())
	assert.Equal(t, 2, NewAnchorParams(16, []float32{1, 2}, []float32{64}).AnchorCount())
}

func TestRPNTargetParams_Validate(t *testing.T) {
	params := NewRPNTargetParams(DefaultAnchorParams, 64, 0.3, 42, 8)
	assert.NoError(t, params.Validate())

	params = NewRPNTargetParams(nil, 64, 0.3, 42, 8)
	assert.Error(t, params.Validate())

	params = NewRPNTargetParams(DefaultAnchorParams, 0, 0.3, 42, 8)
	assert.Error(t, params.Validate())

	params = NewRPNTargetParams(DefaultAnchorParams, 64, 1.5, 42, 8)
	assert.Error(t, params.Validate())

	params = NewRPNTargetParams(DefaultAnchorParams, 64, 0.3, 42, 0)
	assert.Error(t, params.Validate())
}

func TestProposalParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultProposalParams.Validate())

	params := *DefaultProposalParams
	params.ModelName = ""
	assert.Error(t, params.Validate())

	params = *DefaultProposalParams
	params.Timeout = 0
	assert.Error(t, params.Validate())

	params = *DefaultProposalParams
	params.IOUThreshold = 1
	assert.Error(t, params.Validate())

	params = *DefaultProposalParams
	params.TopN = 0
	assert.Error(t, params.Validate())
}

func TestClassCatalog(t *testing.T) {
	catalog := DefaultClassCatalog
	assert.Equal(t, 20, catalog.NumClasses())
	assert.Equal(t, 20, catalog.BackgroundIndex())
	assert.Equal(t, "aeroplane", catalog.Name(0))
	assert.Equal(t, "tvmonitor", catalog.Name(19))
	assert.Equal(t, BackgroundClassName, catalog.Name(20))
	assert.Equal(t, "", catalog.Name(21))
	assert.Equal(t, 14, catalog.ID("person"))
	assert.Equal(t, -1, catalog.ID("unicorn"))
}

func TestClassCatalog_Validate(t *testing.T) {
	assert.Error(t, NewClassCatalog(nil).Validate())
	assert.Error(t, NewClassCatalog([]string{"car", ""}).Validate())
	assert.Error(t, NewClassCatalog([]string{"car", "car"}).Validate())
	assert.Error(t, NewClassCatalog([]string{"car", BackgroundClassName}).Validate())
	assert.NoError(t, NewClassCatalog([]string{"car", "person"}).Validate())
}

func TestLoadRPNTargetParams_JSON(t *testing.T) {
	content := `{
		"anchors": {"stride": 16, "ratios": [0.5, 1.0, 2.0], "scales": [128, 256, 512]},
		"total_positive_anchors": 32,
		"negative_overlap_threshold": 0.25,
		"seed": 7,
		"cache_size": 4
	}`
	path := filepath.Join(t.TempDir(), "rpn.json")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	params, err := LoadRPNTargetParams(path)
	assert.NoError(t, err)
	assert.Equal(t, 16, params.Anchors.Stride)
	assert.Equal(t, 32, params.TotalPositiveAnchors)
	assert.Equal(t, float32(0.25), params.NegativeOverlapThreshold)
	assert.Equal(t, uint64(7), params.Seed)
	assert.Equal(t, 4, params.CacheSize)
}

func TestLoadRPNTargetParams_TOML(t *testing.T) {
	content := `
total_positive_anchors = 64
negative_overlap_threshold = 0.3
seed = 42
cache_size = 8

[anchors]
stride = 32
ratios = [1.0, 2.0]
scales = [64.0, 128.0]
`
	path := filepath.Join(t.TempDir(), "rpn.toml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	params, err := LoadRPNTargetParams(path)
	assert.NoError(t, err)
	assert.Equal(t, 32, params.Anchors.Stride)
	assert.Equal(t, []float32{1, 2}, params.Anchors.Ratios)
	assert.Equal(t, 4, params.Anchors.AnchorCount())
}

func TestLoadRPNTargetParams_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpn.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{"total_positive_anchors": 64}`), 0o644))

	_, err := LoadRPNTargetParams(path)
	assert.Error(t, err)

	_, err = LoadRPNTargetParams(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "rpn.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(``), 0o644))
	_, err = LoadRPNTargetParams(path)
	assert.Error(t, err)
}

func TestLoadClassCatalog_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{"names": ["car", "person"]}`), 0o644))

	catalog, err := LoadClassCatalog(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, catalog.NumClasses())
	assert.Equal(t, "person", catalog.Name(1))
}

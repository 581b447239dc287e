package zpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() Params {
	return Params{Zoom: ZoomUnit, Tilt: TiltKeywords, Pan: Pan{Topic: "go"}}
}

func TestValidateRejectsUnknownZoom(t *testing.T) {
	p := validParams()
	p.Zoom = "planet"
	err := Validate(p)
	require.Error(t, err)
}

func TestValidateRejectsUnknownTilt(t *testing.T) {
	p := validParams()
	p.Tilt = "vibes"
	require.Error(t, Validate(p))
}

func TestValidateAcceptsWellFormedParams(t *testing.T) {
	require.NoError(t, Validate(validParams()))
}

func TestNormalizeAppliesZoomDefaults(t *testing.T) {
	n := Normalize(validParams())
	assert.Equal(t, zoomDefaults[ZoomUnit].MaxTokens, n.MaxTokens)
	assert.Equal(t, zoomDefaults[ZoomUnit].MaxResultsPerType, n.MaxResultsPerType)
	assert.Equal(t, FormatStructured, n.Format)
	assert.Equal(t, TokenizerCl100k, n.Tokenizer)
	assert.Equal(t, ChunkFixed, n.ChunkStrategy)
}

func TestNormalizeRespectsExplicitOverrides(t *testing.T) {
	p := validParams()
	p.MaxTokens = 123
	p.Format = FormatMarkdown
	n := Normalize(p)
	assert.Equal(t, 123, n.MaxTokens)
	assert.Equal(t, FormatMarkdown, n.Format)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Normalize(validParams())
	b := Normalize(validParams())
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestFingerprintDiffersOnPanChange(t *testing.T) {
	a := Normalize(validParams())
	p := validParams()
	p.Pan.Topic = "rust"
	b := Normalize(p)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestFingerprintDiffersOnTiltChange(t *testing.T) {
	a := Normalize(validParams())
	p := validParams()
	p.Tilt = TiltGraph
	b := Normalize(p)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

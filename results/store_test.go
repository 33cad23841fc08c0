package results

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *File {
	t.Helper()
	f, err := Open(filepath.Join(t.TempDir(), "run.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestDatasetRoundTrip(t *testing.T) {
	f := openTemp(t)

	in := []float64{1.5, -2.25, 0, 1e-21}
	require.NoError(t, f.PutDataset("samples/final_mass", in))

	out, err := f.Dataset("samples/final_mass")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Overwrite replaces, not appends.
	require.NoError(t, f.PutDataset("samples/final_mass", []float64{9}))
	out, err = f.Dataset("samples/final_mass")
	require.NoError(t, err)
	assert.Equal(t, []float64{9}, out)
}

func TestDatasetNotFound(t *testing.T) {
	f := openTemp(t)

	_, err := f.Dataset("samples/absent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Attr("absent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ConfigText()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParametersExcludesLoglikelihood(t *testing.T) {
	f := openTemp(t)

	require.NoError(t, f.PutDataset("samples/final_mass", []float64{1}))
	require.NoError(t, f.PutDataset("samples/final_spin", []float64{2}))
	require.NoError(t, f.PutDataset(LoglikelihoodKey, []float64{3}))
	require.NoError(t, f.PutDataset("psds/H1", []float64{4}))

	params, err := f.Parameters()
	require.NoError(t, err)
	assert.Equal(t, []string{"final_mass", "final_spin"}, params)
}

func TestConfigTextRoundTrip(t *testing.T) {
	f := openTemp(t)

	text := "[model]\nname = ringdown\n"
	require.NoError(t, f.PutConfigText(text))

	got, err := f.ConfigText()
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestPSDLookup(t *testing.T) {
	f := openTemp(t)

	require.NoError(t, f.PutDataset(PSDPrefix+"H1", []float64{1, 2, 3}))
	require.NoError(t, f.PutAttr("psd_delta_f", "0.25"))

	power, deltaF, err := f.PSD("H1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, power)
	assert.Equal(t, 0.25, deltaF)

	_, _, err = f.PSD("V1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPSDBadDeltaF(t *testing.T) {
	f := openTemp(t)

	require.NoError(t, f.PutDataset(PSDPrefix+"H1", []float64{1}))
	require.NoError(t, f.PutAttr("psd_delta_f", "nope"))

	_, _, err := f.PSD("H1")
	assert.Error(t, err)
}

func TestReopenSeesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.sqlite")

	f, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("samples/a", []float64{1, 2}))
	require.NoError(t, f.Close())

	f2, err := Open(path)
	require.NoError(t, err)
	defer f2.Close()

	out, err := f2.Dataset("samples/a")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)
}

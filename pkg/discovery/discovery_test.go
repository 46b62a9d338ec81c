package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrireg/pkg/fault"
)

// seedPatient creates a patient directory with the given files.
func seedPatient(t *testing.T, root, id string, files ...string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644))
	}
}

func TestDiscoverConventions(t *testing.T) {
	root := t.TempDir()
	seedPatient(t, root, "patient01", "patient01_t2w.nii.gz", "patient01_adc.nii.gz")
	seedPatient(t, root, "patient02", "scan_T2W.nii.gz", "scan_ADC.nii.gz")
	seedPatient(t, root, "patient03", "axialt2.nii.gz", "axialadc.nii.gz")

	s := NewScanner("t2w", "adc", nil)
	items, err := s.Discover(root)
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := map[string]bool{}
	for _, item := range items {
		byID[item.ID] = true

		fixed, ok := item.Path("t2w")
		require.True(t, ok)
		assert.FileExists(t, fixed)
		moving, ok := item.Path("adc")
		require.True(t, ok)
		assert.FileExists(t, moving)
		assert.True(t, item.RegistrationReady("t2w", "adc"))
		assert.Equal(t, filepath.Join(root, item.ID), item.Dir)
	}
	assert.True(t, byID["patient01"])
	assert.True(t, byID["patient02"])
	assert.True(t, byID["patient03"])
}

func TestDiscoverExactFallback(t *testing.T) {
	root := t.TempDir()

	// No suffix convention matches, but the exact
	// "<id>_<modality>.nii.gz" names do.
	seedPatient(t, root, "case9", "case9_fixedmod.nii.gz", "case9_movingmod.nii.gz")

	s := NewScanner("fixedmod", "movingmod", nil)
	items, err := s.Discover(root)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "case9", items[0].ID)
}

func TestDiscoverExcludesIncomplete(t *testing.T) {
	root := t.TempDir()
	seedPatient(t, root, "complete", "complete_t2w.nii.gz", "complete_adc.nii.gz")
	seedPatient(t, root, "missing-moving", "missing-moving_t2w.nii.gz")
	seedPatient(t, root, "empty")

	items, err := NewScanner("t2w", "adc", nil).Discover(root)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "complete", items[0].ID)
}

func TestDiscoverSkipsHiddenAndFiles(t *testing.T) {
	root := t.TempDir()
	seedPatient(t, root, ".cache", ".cache_t2w.nii.gz", ".cache_adc.nii.gz")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("n"), 0644))
	seedPatient(t, root, "p1", "p1_t2w.nii.gz", "p1_adc.nii.gz")

	items, err := NewScanner("t2w", "adc", nil).Discover(root)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
}

func TestDiscoverMatchesEachItemOnce(t *testing.T) {
	root := t.TempDir()

	// Files match both the first convention and the exact fallback;
	// the patient must still appear exactly once.
	seedPatient(t, root, "pt", "pt_t2w.nii.gz", "pt_adc.nii.gz")

	items, err := NewScanner("t2w", "adc", nil).Discover(root)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := NewScanner("t2w", "adc", nil).Discover(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Discovery))
}

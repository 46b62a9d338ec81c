// Package discovery scans a study root directory and produces
// validated per-patient work items. A directory lacking the required
// modality pair is excluded and logged, never an error; hidden
// directories are always skipped.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mrireg/internal/logging"
	"mrireg/internal/models"
	"mrireg/pkg/fault"
)

// Convention is a pair of filename glob patterns, one per modality.
// Conventions are tried in priority order; the first one matching both
// modalities wins.
type Convention struct {
	Fixed  string
	Moving string
}

// DefaultConventions covers the file naming schemes seen across the
// source cohorts, most specific first.
var DefaultConventions = []Convention{
	{Fixed: "*_t2w.nii.gz", Moving: "*_adc.nii.gz"},
	{Fixed: "*_T2W.nii.gz", Moving: "*_ADC.nii.gz"},
	{Fixed: "*t2.nii.gz", Moving: "*adc.nii.gz"},
}

// Scanner discovers work items under a root directory.
type Scanner struct {
	// FixedName and MovingName are the modality names recorded on
	// discovered work items.
	FixedName  string
	MovingName string

	// Conventions are the filename patterns tried per directory.
	Conventions []Convention

	// Log receives per-directory warnings for excluded items.
	Log *logging.Logger
}

// NewScanner creates a scanner with the default conventions.
func NewScanner(fixedName, movingName string, log *logging.Logger) *Scanner {
	if log == nil {
		log = logging.Discard()
	}
	return &Scanner{
		FixedName:   fixedName,
		MovingName:  movingName,
		Conventions: DefaultConventions,
		Log:         log,
	}
}

// Discover scans the immediate subdirectories of root and returns one
// work item per directory containing both required modalities.
func (s *Scanner) Discover(root string) ([]models.WorkItem, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fault.Wrap(fault.Discovery, err, "failed to read study root %s", root)
	}

	var items []models.WorkItem
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		fixedPath, movingPath := s.matchModalities(dir, entry.Name())
		if fixedPath == "" || movingPath == "" {
			s.Log.Warn("skipping %s: missing required modality files", entry.Name())
			continue
		}

		items = append(items, models.WorkItem{
			ID:  entry.Name(),
			Dir: dir,
			Modalities: map[string]string{
				s.FixedName:  fixedPath,
				s.MovingName: movingPath,
			},
		})
		s.Log.Debug("found patient %s", entry.Name())
	}

	s.Log.Info("discovered %d patients with complete data under %s", len(items), root)
	return items, nil
}

// matchModalities resolves the modality pair for one patient
// directory: pattern conventions in priority order, then the exact
// "<id>_<modality>.nii.gz" fallback.
func (s *Scanner) matchModalities(dir, id string) (fixedPath, movingPath string) {
	for _, conv := range s.Conventions {
		fixedMatches, _ := filepath.Glob(filepath.Join(dir, conv.Fixed))
		movingMatches, _ := filepath.Glob(filepath.Join(dir, conv.Moving))
		if len(fixedMatches) > 0 && len(movingMatches) > 0 {
			return fixedMatches[0], movingMatches[0]
		}
	}

	exactFixed := filepath.Join(dir, fmt.Sprintf("%s_%s.nii.gz", id, s.FixedName))
	exactMoving := filepath.Join(dir, fmt.Sprintf("%s_%s.nii.gz", id, s.MovingName))
	if fileExists(exactFixed) && fileExists(exactMoving) {
		return exactFixed, exactMoving
	}

	return "", ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

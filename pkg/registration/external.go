package registration

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mrireg/internal/logging"
	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
)

// Filenames the external executable reads and writes inside its
// working directory.
const (
	fixedFilename     = "fixed.mrv"
	movingFilename    = "moving.mrv"
	resultFilename    = "result.mrv"
	transformFilename = "transform.json"
)

// ExternalEngine shells out to a registration executable with
// file-based I/O: it writes the fixed and moving volumes to a scoped
// temporary directory, invokes the executable with a bounded timeout,
// and reads back the result volume and transform file. The temporary
// directory is removed even on timeout or failure.
type ExternalEngine struct {
	executable string
	paramFile  string
	timeout    time.Duration
	lib        imaging.Library
	log        *logging.Logger
}

// ExternalOptions configures an ExternalEngine.
type ExternalOptions struct {
	// ExecutablePath is the registration executable. Must exist.
	ExecutablePath string

	// ParameterFile is the optimizer parameter file passed through
	// verbatim. Must exist when non-empty.
	ParameterFile string

	// Timeout bounds one registration call.
	Timeout time.Duration

	// Library performs volume I/O for the file exchange.
	Library imaging.Library

	// Log receives debug output.
	Log *logging.Logger
}

// NewExternalEngine validates the options and returns the engine.
// A missing executable or parameter file is a configuration error,
// fatal at startup rather than per item.
func NewExternalEngine(opts ExternalOptions) (*ExternalEngine, error) {
	if opts.ExecutablePath == "" {
		return nil, fault.New(fault.Configuration, "registration executable path is not set")
	}
	if _, err := os.Stat(opts.ExecutablePath); err != nil {
		return nil, fault.Wrap(fault.Configuration, err,
			"registration executable not found at %s", opts.ExecutablePath)
	}
	if opts.ParameterFile != "" {
		if _, err := os.Stat(opts.ParameterFile); err != nil {
			return nil, fault.Wrap(fault.Configuration, err,
				"registration parameter file not found at %s", opts.ParameterFile)
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if opts.Library == nil {
		opts.Library = imaging.NewFileLibrary()
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &ExternalEngine{
		executable: opts.ExecutablePath,
		paramFile:  opts.ParameterFile,
		timeout:    opts.Timeout,
		lib:        opts.Library,
		log:        opts.Log,
	}, nil
}

// Register runs one registration through the external executable.
func (e *ExternalEngine) Register(ctx context.Context, fixed, moving *imaging.Volume) (*Result, error) {
	workDir, err := os.MkdirTemp("", "mrireg-registration-*")
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "unable to create registration work directory")
	}
	defer os.RemoveAll(workDir)

	fixedPath := filepath.Join(workDir, fixedFilename)
	movingPath := filepath.Join(workDir, movingFilename)
	if err := e.lib.WriteImage(fixed, fixedPath); err != nil {
		return nil, fault.Wrap(fault.Execution, err, "unable to write fixed volume")
	}
	if err := e.lib.WriteImage(moving, movingPath); err != nil {
		return nil, fault.Wrap(fault.Execution, err, "unable to write moving volume")
	}

	args := []string{"-f", fixedPath, "-m", movingPath, "-out", workDir}
	if e.paramFile != "" {
		args = append(args, "-p", e.paramFile)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug("registration command: %s %s", e.executable, strings.Join(args, " "))
	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fault.New(fault.Execution, "registration timed out after %s", e.timeout)
	}
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err,
			"registration executable failed: %s", stderrTail(stderr.String()))
	}

	registered, err := e.lib.ReadImage(filepath.Join(workDir, resultFilename))
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "registration produced no result volume")
	}
	transform, err := imaging.LoadTransform(filepath.Join(workDir, transformFilename))
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "registration produced no transform file")
	}

	return &Result{Registered: registered, Transform: transform}, nil
}

// stderrTail keeps failure messages readable when the tool is chatty.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no stderr output)"
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}

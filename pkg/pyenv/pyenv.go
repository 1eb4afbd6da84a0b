// Package pyenv resolves which Python interpreter a task should use and queries the
// version of the package being built. Nothing is cached: every call looks at the
// filesystem again.
package pyenv

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"

	"github.com/ngld/pytask/pkg/buildsys"
	"github.com/ngld/pytask/pkg/config"
)

// ErrNoInterpreter is returned when neither a virtual environment nor a system-wide interpreter exists
var ErrNoInterpreter = eris.New("no Python interpreter found")

// systemCandidates are looked up in PATH if no system interpreter is configured
var systemCandidates = []string{"python3", "python"}

// Environment describes the interpreter selection for a project
type Environment struct {
	// VenvPath is the absolute path of the virtual environment (it may not exist yet)
	VenvPath string
	// VenvPython is the interpreter inside the virtual environment
	VenvPython string
	// SystemPython is the system-wide interpreter or empty if none was found
	SystemPython string
	// Python is VenvPython if it exists and SystemPython otherwise
	Python string
	// InVenv reports whether Python points into the virtual environment
	InVenv bool
}

// VenvInterpreter returns the path of the interpreter inside the virtual environment at venvPath
func VenvInterpreter(venvPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvPath, "Scripts", "python.exe")
	}
	return filepath.Join(venvPath, "bin", "python")
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return runtime.GOOS == "windows" || info.Mode()&0o111 != 0
}

// FindSystemPython returns the configured interpreter or the first one from PATH
func FindSystemPython(configured string) (string, error) {
	candidates := systemCandidates
	if configured != "" {
		candidates = []string{configured}
	}

	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err == nil {
			return path, nil
		}
	}

	return "", eris.Wrapf(ErrNoInterpreter, "looked for %s", strings.Join(candidates, ", "))
}

// Resolve picks the interpreter for the project in projectRoot. The venv interpreter wins if it exists.
func Resolve(cfg *config.Config, projectRoot string) (*Environment, error) {
	venvPath := cfg.VenvPath()
	if !filepath.IsAbs(venvPath) {
		venvPath = filepath.Join(projectRoot, venvPath)
	}

	env := &Environment{
		VenvPath:   venvPath,
		VenvPython: VenvInterpreter(venvPath),
	}

	systemPython, sysErr := FindSystemPython(cfg.SystemPython)
	env.SystemPython = systemPython

	if isExecutable(env.VenvPython) {
		env.Python = env.VenvPython
		env.InVenv = true
		return env, nil
	}

	if sysErr != nil {
		return env, sysErr
	}

	env.Python = systemPython
	return env, nil
}

// ParseVersion extracts the version from the output of "<entry point> --version" which looks like
// "revpipyload 0.11.0". The token is returned verbatim since it's part of the artifact names.
// semantic reports whether it's a strict semantic version.
func ParseVersion(output string) (version string, semantic bool, err error) {
	fields := strings.Fields(output)
	switch len(fields) {
	case 0:
		return "", false, eris.New("version output is empty")
	case 1:
		version = fields[0]
	default:
		version = fields[1]
	}

	_, err = semver.StrictNewVersion(version)
	return version, err == nil, nil
}

// QueryVersion runs the entry point with --version using python and returns the parsed version
func QueryVersion(ctx context.Context, opts buildsys.RunOptions, projectRoot, python, entry string) (string, error) {
	output, err := buildsys.Output(ctx, opts, projectRoot, nil, python, entry, "--version")
	if err != nil {
		return "", eris.Wrapf(err, "failed to run %s %s --version", python, entry)
	}

	version, semantic, err := ParseVersion(output)
	if err != nil {
		return "", err
	}

	if !semantic {
		buildsys.Log(ctx).Debug().Msgf("version %s is not a semantic version", version)
	}

	return version, nil
}

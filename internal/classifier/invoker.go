package classifier

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/slothbucket/internal/httperr"
)

// Invoker runs the external classifier over a materialized image and returns
// its raw stdout. Both deployment modes expose this same contract so the
// pipeline never knows which one is wired in.
type Invoker interface {
	Classify(ctx context.Context, filename string) (string, error)
}

// The filename is interpolated into shell lines in docker mode. Generated
// names are uuid + suffix, but the invoker validates rather than trusts.
var safeFilename = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateFilename(filename string) error {
	if filename == "" {
		return httperr.InvalidArgument(errors.New("classifier filename is required"))
	}
	if !strings.HasSuffix(filename, ".jpeg") && !strings.HasSuffix(filename, ".png") {
		return httperr.InvalidArgument(fmt.Errorf("unsupported classifier input %q", filename))
	}
	if !safeFilename.MatchString(filename) {
		return httperr.InvalidArgument(fmt.Errorf("unsafe classifier filename %q", filename))
	}
	return nil
}

// DirectInvoker spawns the classification script as a sibling process. Suits
// deployments co-located with the classifier runtime.
type DirectInvoker struct {
	scriptDir string
	imageDir  string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDirectInvoker builds an invoker running classify_image.py out of
// scriptDir against images materialized into imageDir.
func NewDirectInvoker(scriptDir, imageDir string, timeout time.Duration, logger *zap.Logger) *DirectInvoker {
	return &DirectInvoker{
		scriptDir: scriptDir,
		imageDir:  imageDir,
		timeout:   timeout,
		logger:    logger.Named("classifier_direct"),
	}
}

// Classify runs the classifier and captures stdout. The wait is bounded; an
// expired deadline or non-zero exit maps to an internal error.
func (d *DirectInvoker) Classify(ctx context.Context, filename string) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	imagePath, err := filepath.Abs(filepath.Join(d.imageDir, filename))
	if err != nil {
		return "", httperr.InternalError(fmt.Errorf("resolve image path: %w", err))
	}

	cmd := exec.CommandContext(ctx, "python", "classify_image.py", "--image_file", imagePath)
	cmd.Dir = d.scriptDir
	output, err := cmd.Output()
	if err != nil {
		return "", d.classifyError(ctx, filename, err)
	}
	return string(output), nil
}

func (d *DirectInvoker) classifyError(ctx context.Context, filename string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d.logger.Error("classification timed out", zap.String("filename", filename))
		return httperr.InternalError(fmt.Errorf("classification timed out: %w", ctx.Err()))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		d.logger.Error("classifier exited with failure",
			zap.String("filename", filename),
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.ByteString("stderr", exitErr.Stderr))
	} else {
		d.logger.Error("failed to spawn classifier", zap.String("filename", filename), zap.Error(err))
	}
	return httperr.InternalError(fmt.Errorf("run classifier: %w", err))
}

// DockerInvoker stages the image into a running container, executes the
// classifier there, and removes the staged copy. Keeps a heavyweight ML
// runtime out of the application process during development.
type DockerInvoker struct {
	container string
	imageDir  string
	timeout   time.Duration
	logger    *zap.Logger
	runner    commandRunner
}

// commandRunner abstracts subprocess execution so the three docker steps can
// be tested without a docker daemon.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// NewDockerInvoker builds an invoker targeting the named container.
func NewDockerInvoker(container, imageDir string, timeout time.Duration, logger *zap.Logger) *DockerInvoker {
	return &DockerInvoker{
		container: container,
		imageDir:  imageDir,
		timeout:   timeout,
		logger:    logger.Named("classifier_docker"),
		runner:    runCommand,
	}
}

// Classify copies the file into the container, runs the classifier, and
// deletes the copy. A failing step aborts the sequence; later steps are not
// attempted.
func (d *DockerInvoker) Classify(ctx context.Context, filename string) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	remotePath := "/root/images/" + filename
	localPath := filepath.Join(d.imageDir, filename)

	if _, err := d.runner(ctx, "docker", "cp", localPath, d.container+":"+remotePath); err != nil {
		return "", d.stepError(ctx, "copy image into container", filename, err)
	}

	output, err := d.runner(ctx, "docker", "exec", d.container, "bash", "-c",
		"python /root/classify_image.py --image_file "+remotePath)
	if err != nil {
		return "", d.stepError(ctx, "run classifier in container", filename, err)
	}

	if _, err := d.runner(ctx, "docker", "exec", d.container, "bash", "-c", "rm "+remotePath); err != nil {
		return "", d.stepError(ctx, "remove image from container", filename, err)
	}

	return string(output), nil
}

func (d *DockerInvoker) stepError(ctx context.Context, step, filename string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d.logger.Error("classification timed out", zap.String("step", step), zap.String("filename", filename))
		return httperr.InternalError(fmt.Errorf("classification timed out: %w", ctx.Err()))
	}
	d.logger.Error("docker classification step failed",
		zap.String("step", step),
		zap.String("filename", filename),
		zap.Error(err))
	return httperr.InternalError(fmt.Errorf("%s: %w", step, err))
}

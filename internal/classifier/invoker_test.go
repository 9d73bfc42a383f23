package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/slothbucket/internal/httperr"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"jpeg accepted", "0c40b43f-3b9c-4b2e-9f1a-0a8d8f2a1b11.jpeg", false},
		{"png accepted", "image.png", false},
		{"empty rejected", "", true},
		{"wrong suffix rejected", "image.gif", true},
		{"no suffix rejected", "image", true},
		{"shell metacharacters rejected", "a;rm -rf tmp.jpeg", true},
		{"path traversal rejected", "../../etc/passwd.jpeg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFilename(tt.filename)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for %q", tt.filename)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.filename, err)
			}
			if tt.wantErr && httperr.StatusOf(err) != 400 {
				t.Fatalf("validation failure must map to 400, got %d", httperr.StatusOf(err))
			}
		})
	}
}

func TestDirectInvokerRejectsBadFilenameBeforeSpawning(t *testing.T) {
	invoker := NewDirectInvoker("/root", t.TempDir(), time.Second, zap.NewNop())

	_, err := invoker.Classify(context.Background(), "nope.txt")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if httperr.StatusOf(err) != 400 {
		t.Fatalf("expected 400, got %d", httperr.StatusOf(err))
	}
}

type recordedCall struct {
	name string
	args []string
}

func stubRunner(calls *[]recordedCall, outputs []string, errs []error) commandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		i := len(*calls)
		*calls = append(*calls, recordedCall{name: name, args: args})
		var out string
		if i < len(outputs) {
			out = outputs[i]
		}
		var err error
		if i < len(errs) {
			err = errs[i]
		}
		return []byte(out), err
	}
}

func TestDockerInvokerRunsThreeStepsInOrder(t *testing.T) {
	var calls []recordedCall
	invoker := NewDockerInvoker("imagenet-tensorflow", "saved_images", time.Second, zap.NewNop())
	invoker.runner = stubRunner(&calls, []string{"", "three-toed sloth (score = 0.85)", ""}, nil)

	output, err := invoker.Classify(context.Background(), "abc.jpeg")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if output != "three-toed sloth (score = 0.85)" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(calls) != 3 {
		t.Fatalf("expected 3 docker invocations, got %d", len(calls))
	}
	if calls[0].args[0] != "cp" {
		t.Fatalf("first step must be docker cp, got %v", calls[0].args)
	}
	if calls[1].args[0] != "exec" || !strings.Contains(strings.Join(calls[1].args, " "), "classify_image.py") {
		t.Fatalf("second step must exec the classifier, got %v", calls[1].args)
	}
	if calls[2].args[0] != "exec" || !strings.Contains(strings.Join(calls[2].args, " "), "rm /root/images/abc.jpeg") {
		t.Fatalf("third step must remove the staged file, got %v", calls[2].args)
	}
}

func TestDockerInvokerAbortsAfterFailedStep(t *testing.T) {
	var calls []recordedCall
	invoker := NewDockerInvoker("imagenet-tensorflow", "saved_images", time.Second, zap.NewNop())
	invoker.runner = stubRunner(&calls, nil, []error{errors.New("cp failed")})

	_, err := invoker.Classify(context.Background(), "abc.jpeg")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if httperr.StatusOf(err) != 500 {
		t.Fatalf("expected 500, got %d", httperr.StatusOf(err))
	}
	if len(calls) != 1 {
		t.Fatalf("steps after a failed step must not run, got %d invocations", len(calls))
	}
}

func TestDockerInvokerFailsWhenCleanupFails(t *testing.T) {
	var calls []recordedCall
	invoker := NewDockerInvoker("imagenet-tensorflow", "saved_images", time.Second, zap.NewNop())
	invoker.runner = stubRunner(&calls,
		[]string{"", "bath towel (score = 0.9)", ""},
		[]error{nil, nil, errors.New("rm failed")})

	_, err := invoker.Classify(context.Background(), "abc.jpeg")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(calls) != 3 {
		t.Fatalf("expected all 3 steps attempted, got %d", len(calls))
	}
}

func TestDockerInvokerReportsTimeout(t *testing.T) {
	invoker := NewDockerInvoker("imagenet-tensorflow", "saved_images", time.Millisecond, zap.NewNop())
	invoker.runner = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := invoker.Classify(context.Background(), "abc.jpeg")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if httperr.StatusOf(err) != 500 {
		t.Fatalf("timeout must map to 500, got %d", httperr.StatusOf(err))
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

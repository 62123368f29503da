package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mmoto/internal/media/ffprobe"
	"mmoto/internal/services"
)

type recordedCall struct {
	name string
	args []string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(args []string) ([]byte, error)
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{name: name, args: append([]string(nil), args...)})
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(args)
	}
	return writeOutput(args)
}

func writeOutput(args []string) ([]byte, error) {
	out := args[len(args)-1]
	return nil, os.WriteFile(out, []byte("video"), 0o644)
}

func newTestGateway(t *testing.T, runner *fakeRunner) *Gateway {
	t.Helper()
	g := NewGateway(Options{HardwareAccel: true}, nil)
	g.WithCommandRunner(runner.run)
	return g
}

func TestJobArgsOrder(t *testing.T) {
	job := Job{
		Inputs: []Input{
			{Path: "clip.mp4", Options: []string{"-ss", "1.5", "-t", "8"}},
			{Path: "audio.mp3"},
		},
		FilterGraph:   "scale=1080:1920",
		OutputOptions: []string{"-an"},
		Output:        "out.mp4",
	}
	got := strings.Join(job.Args(), " ")
	want := "-hide_banner -nostdin -y -loglevel error -ss 1.5 -t 8 -i clip.mp4 -i audio.mp3 -vf scale=1080:1920 -an out.mp4"
	if got != want {
		t.Fatalf("unexpected args\n got: %s\nwant: %s", got, want)
	}
}

func TestRunWritesSingleOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{}
	g := newTestGateway(t, runner)

	output := filepath.Join(dir, "work", "out.mp4")
	if err := g.Run(context.Background(), Job{Inputs: []Input{{Path: input}}, Output: output}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if data, _ := os.ReadFile(input); string(data) != "source" {
		t.Fatal("input must not be modified")
	}
	if len(runner.calls) != 1 || runner.calls[0].name != "ffmpeg" {
		t.Fatalf("expected one ffmpeg call, got %#v", runner.calls)
	}
}

func TestRunRejectsOverwritingInput(t *testing.T) {
	g := newTestGateway(t, &fakeRunner{})
	path := filepath.Join(t.TempDir(), "same.mp4")
	err := g.Run(context.Background(), Job{Inputs: []Input{{Path: path}}, Output: path})
	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestRunFailureCarriesStderrTail(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.mp4")
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
		return []byte("frame=1\nError while filtering: Invalid argument\n"), errors.New("exit status 1")
	}}
	g := newTestGateway(t, runner)

	err := g.Run(context.Background(), Job{Inputs: []Input{{Path: "in.mp4"}}, Output: output})
	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(tErr.Stderr, "Invalid argument") {
		t.Fatalf("expected stderr tail, got %q", tErr.Stderr)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected external tool marker")
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output removed")
	}
}

func TestRunEmptyOutputIsFailure(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.mp4")
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return nil, os.WriteFile(args[len(args)-1], nil, 0o644)
	}}
	g := newTestGateway(t, runner)
	if err := g.Run(context.Background(), Job{Inputs: []Input{{Path: "in.mp4"}}, Output: output}); err == nil {
		t.Fatal("expected zero-byte output to fail")
	}
}

func TestRunTimeoutIsRetryable(t *testing.T) {
	runner := &fakeRunner{respond: func([]string) ([]byte, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}}
	g := NewGateway(Options{TranscodeTimeout: 10 * time.Millisecond}, nil)
	g.WithCommandRunner(runner.run)

	err := g.Run(context.Background(), Job{Inputs: []Input{{Path: "in.mp4"}}, Output: filepath.Join(t.TempDir(), "o.mp4")})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("timeouts must be retryable")
	}
}

func TestRunCanceledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{respond: func([]string) ([]byte, error) {
		cancel()
		return nil, errors.New("signal: killed")
	}}
	g := newTestGateway(t, runner)
	err := g.Run(ctx, Job{Inputs: []Input{{Path: "in.mp4"}}, Output: filepath.Join(t.TempDir(), "o.mp4")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("cancellation must not be retryable")
	}
}

func TestConcatWritesListAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	var listContent string
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		for i, a := range args {
			if a == "-i" {
				data, _ := os.ReadFile(args[i+1])
				listContent = string(data)
			}
		}
		return writeOutput(args)
	}}
	g := newTestGateway(t, runner)

	parts := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "it's.mp4")}
	output := filepath.Join(dir, "joined.mp4")
	if err := g.Concat(context.Background(), parts, output); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	args := strings.Join(runner.calls[0].args, " ")
	if !strings.Contains(args, "-f concat -safe 0 -i") || !strings.Contains(args, "-c copy") {
		t.Fatalf("unexpected concat args %s", args)
	}
	if !strings.Contains(listContent, `file '`+filepath.Join(dir, `it'\''s.mp4`)+`'`) {
		t.Fatalf("expected escaped quote in list, got %q", listContent)
	}
	if _, err := os.Stat(filepath.Join(dir, "joined_concat.txt")); !os.IsNotExist(err) {
		t.Fatal("expected list file removed")
	}
}

func TestProbeMapsResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := NewGateway(Options{}, nil)
	g.WithProbeRunner(func(ctx context.Context, binary, p string) (ffprobe.Result, error) {
		return ffprobe.Parse([]byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080},{"codec_type":"audio"},{"codec_type":"subtitle","codec_name":"mov_text"}],"format":{"duration":"7.5"}}`))
	})
	info, err := g.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 || info.DurationSeconds != 7.5 || !info.HasAudio || !info.HasSubtitles {
		t.Fatalf("unexpected media info %+v", info)
	}

	if _, err := g.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

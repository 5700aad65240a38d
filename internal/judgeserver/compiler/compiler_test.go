package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/sandbox"
	appErr "rivoj/pkg/errors"
)

type fakeRunner struct {
	lastConfig sandbox.Config
	result     sandbox.Result
	output     string
}

func (f *fakeRunner) Run(ctx context.Context, cfg sandbox.Config) (sandbox.Result, error) {
	f.lastConfig = cfg
	if f.output != "" && cfg.OutputPath != "" {
		if err := os.WriteFile(cfg.OutputPath, []byte(f.output), 0644); err != nil {
			return sandbox.Result{}, err
		}
	}
	return f.result, nil
}

var cCompileConfig = judgeapi.CompileConfig{
	SrcName:        "main.c",
	ExeName:        "main",
	MaxCPUTime:     3000,
	MaxRealTime:    5000,
	MaxMemory:      128 * 1024 * 1024,
	CompileCommand: "/usr/bin/gcc -O2 -o {exe_path} {src_path}",
}

func TestCompileSuccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.c")
	if err := os.WriteFile(srcPath, []byte("int main(){}"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	c := New(runner, 901, 901)

	exePath, err := c.Compile(context.Background(), cCompileConfig, srcPath, dir)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if exePath != filepath.Join(dir, "main") {
		t.Fatalf("exe path = %s", exePath)
	}

	got := runner.lastConfig
	if got.ExePath != "/usr/bin/gcc" {
		t.Fatalf("compiler binary = %s", got.ExePath)
	}
	wantArgs := []string{"-O2", "-o", filepath.Join(dir, "main"), srcPath}
	if len(got.Args) != len(wantArgs) {
		t.Fatalf("args = %v", got.Args)
	}
	for i := range wantArgs {
		if got.Args[i] != wantArgs[i] {
			t.Fatalf("args[%d] = %s, want %s", i, got.Args[i], wantArgs[i])
		}
	}
	if got.SeccompRule != "" {
		t.Fatalf("compile step must run without a syscall policy, got %q", got.SeccompRule)
	}
	if got.UID != 901 || got.GID != 901 {
		t.Fatalf("uid/gid = %d/%d", got.UID, got.GID)
	}
	if _, err := os.Stat(filepath.Join(dir, compilerOutName)); !os.IsNotExist(err) {
		t.Fatal("compiler.out should be removed after a clean compile")
	}
}

func TestCompileErrorCarriesOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.c")
	if err := os.WriteFile(srcPath, []byte("int main( bad"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{
		result: sandbox.Result{Status: sandbox.StatusRuntimeError, ExitCode: 1},
		output: "main.c:1:5: error: expected declaration\n",
	}
	c := New(runner, 901, 901)

	_, err := c.Compile(context.Background(), cCompileConfig, srcPath, dir)
	if appErr.GetCode(err) != appErr.CompileError {
		t.Fatalf("got code %d, want CompileError", appErr.GetCode(err))
	}
	typed := err.(*appErr.Error)
	if !strings.Contains(typed.Message, "expected declaration") {
		t.Fatalf("message = %q", typed.Message)
	}
	if _, statErr := os.Stat(filepath.Join(dir, compilerOutName)); !os.IsNotExist(statErr) {
		t.Fatal("compiler.out should be removed after a failed compile")
	}
}

func TestSPJStoreCompileAndResolve(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	exeDir := t.TempDir()
	runner := &fakeRunner{}
	store := NewSPJStore(New(runner, 901, 901), srcDir, exeDir)

	cfg := judgeapi.CompileConfig{
		SrcName:        "spj-{spj_version}.c",
		ExeName:        "spj-{spj_version}",
		MaxCPUTime:     3000,
		MaxRealTime:    5000,
		MaxMemory:      1024 * 1024 * 1024,
		CompileCommand: "/usr/bin/gcc -o {exe_path} {src_path}",
	}

	if err := store.Compile(context.Background(), "int main(){}", "v1", cfg); err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	srcPath := filepath.Join(srcDir, "spj-v1.c")
	if _, err := os.Stat(srcPath); err != nil {
		t.Fatalf("spj source not written: %v", err)
	}

	// Resolution fails until the binary exists on disk.
	spjCfg := judgeapi.SPJConfig{ExeName: "spj-{spj_version}"}
	if _, err := store.ExePath("v1", spjCfg); appErr.GetCode(err) != appErr.SPJNotCompiled {
		t.Fatalf("got code %d, want SPJNotCompiled", appErr.GetCode(err))
	}

	exePath := filepath.Join(exeDir, "spj-v1")
	if err := os.WriteFile(exePath, []byte("binary"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := store.ExePath("v1", spjCfg)
	if err != nil {
		t.Fatalf("ExePath() error: %v", err)
	}
	if got != exePath {
		t.Fatalf("ExePath() = %s, want %s", got, exePath)
	}

	// Existing binary makes recompilation a no-op.
	runner.lastConfig = sandbox.Config{}
	if err := store.Compile(context.Background(), "", "v1", cfg); err != nil {
		t.Fatalf("Compile() error on cached version: %v", err)
	}
	if runner.lastConfig.ExePath != "" {
		t.Fatal("cached spj version must not be recompiled")
	}
}

func TestSPJStoreCompileErrorKind(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		result: sandbox.Result{Status: sandbox.StatusRuntimeError, ExitCode: 1},
		output: "spj.c: error: something",
	}
	store := NewSPJStore(New(runner, 901, 901), t.TempDir(), t.TempDir())

	cfg := judgeapi.CompileConfig{
		SrcName:        "spj-{spj_version}.c",
		ExeName:        "spj-{spj_version}",
		MaxCPUTime:     3000,
		MaxRealTime:    5000,
		MaxMemory:      1024 * 1024 * 1024,
		CompileCommand: "/usr/bin/gcc -o {exe_path} {src_path}",
	}
	err := store.Compile(context.Background(), "bad", "v2", cfg)
	if appErr.GetCode(err) != appErr.SPJCompileError {
		t.Fatalf("got code %d, want SPJCompileError", appErr.GetCode(err))
	}
}

package server

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/compiler"
	"rivoj/internal/judgeserver/judgeclient"
	"rivoj/internal/judgeserver/sandbox"
	"rivoj/internal/judgeserver/sysinfo"
	"rivoj/internal/judgeserver/testdata"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fakeRunner treats gcc invocations as the compile step and everything else
// as the judged program, which writes a canned output file.
type fakeRunner struct {
	compileFails  bool
	compileOutput string
	runOutput     string
}

func (f *fakeRunner) Run(ctx context.Context, cfg sandbox.Config) (sandbox.Result, error) {
	if strings.Contains(cfg.ExePath, "gcc") {
		if f.compileFails {
			if cfg.OutputPath != "" {
				_ = os.WriteFile(cfg.OutputPath, []byte(f.compileOutput), 0644)
			}
			return sandbox.Result{Status: sandbox.StatusRuntimeError, ExitCode: 1}, nil
		}
		return sandbox.Result{}, nil
	}
	if cfg.OutputPath != "" {
		_ = os.WriteFile(cfg.OutputPath, []byte(f.runOutput), 0644)
	}
	return sandbox.Result{CPUTime: 10, RealTime: 12, Memory: 1 << 20}, nil
}

type fakeTestData struct {
	dir string
}

func (f *fakeTestData) Get(ctx context.Context, testCaseID string) (string, error) {
	return f.dir, nil
}

func writeTestCaseSet(t *testing.T, info testdata.Info) string {
	t.Helper()
	dir := t.TempDir()
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info"), data, 0644); err != nil {
		t.Fatal(err)
	}
	for _, tc := range info.TestCases {
		if err := os.WriteFile(filepath.Join(dir, tc.InputName), []byte("input"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestService(t *testing.T, runner sandbox.Runner, caseDir string) *Service {
	t.Helper()
	comp := compiler.New(runner, 901, 901)
	store := compiler.NewSPJStore(comp, t.TempDir(), t.TempDir())
	client, err := judgeclient.New(judgeclient.Options{Runner: runner, Parallelism: 2})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(ServiceConfig{WorkspaceDir: t.TempDir()}, comp, store, client, &fakeTestData{dir: caseDir})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

const testSecret = "no_body_know"

func newTestRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ctrl := NewController(svc, sysinfo.NewCollector(), sha256Hex(testSecret))
	ctrl.RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, token string, payload interface{}) judgeapi.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(judgeapi.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope judgeapi.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func judgeRequest() judgeapi.JudgeRequest {
	return judgeapi.JudgeRequest{
		LanguageConfig: judgeapi.LanguageConfig{
			Name: "C",
			Compile: &judgeapi.CompileConfig{
				SrcName:        "main.c",
				ExeName:        "main",
				MaxCPUTime:     3000,
				MaxRealTime:    5000,
				MaxMemory:      128 << 20,
				CompileCommand: "/usr/bin/gcc -o {exe_path} {src_path}",
			},
			Run: judgeapi.RunConfig{Command: "{exe_path}", SeccompRule: "c_cpp"},
		},
		Src:        "int main(){}",
		MaxCPUTime: 1000,
		MaxMemory:  128 << 20,
		TestCaseID: "42",
	}
}

func TestJudgeEndpoint(t *testing.T) {
	t.Parallel()

	caseDir := writeTestCaseSet(t, testdata.Info{TestCases: map[string]testdata.TestCaseInfo{
		"1": {InputName: "1.in", StrippedOutputMD5: md5Hex("5")},
	}})
	svc := newTestService(t, &fakeRunner{runOutput: "5\n"}, caseDir)
	router := newTestRouter(t, svc)

	envelope := postJSON(t, router, "/judge", sha256Hex(testSecret), judgeRequest())
	if envelope.Err != "" {
		t.Fatalf("err = %s, data = %s", envelope.Err, envelope.Data)
	}
	var results []judgeapi.TestCaseResult
	if err := json.Unmarshal(envelope.Data, &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Result != judgeapi.VerdictAccepted {
		t.Fatalf("results = %+v", results)
	}
}

func TestJudgeEndpointCompileError(t *testing.T) {
	t.Parallel()

	caseDir := writeTestCaseSet(t, testdata.Info{TestCases: map[string]testdata.TestCaseInfo{
		"1": {InputName: "1.in", StrippedOutputMD5: md5Hex("5")},
	}})
	runner := &fakeRunner{compileFails: true, compileOutput: "main.c:1: error: oops"}
	router := newTestRouter(t, newTestService(t, runner, caseDir))

	envelope := postJSON(t, router, "/judge", sha256Hex(testSecret), judgeRequest())
	if envelope.Err != judgeapi.ErrKindCompileError {
		t.Fatalf("err = %s", envelope.Err)
	}
	var detail string
	if err := json.Unmarshal(envelope.Data, &detail); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(detail, "error: oops") {
		t.Fatalf("detail = %q", detail)
	}
}

func TestTokenVerification(t *testing.T) {
	t.Parallel()

	caseDir := writeTestCaseSet(t, testdata.Info{TestCases: map[string]testdata.TestCaseInfo{
		"1": {InputName: "1.in"},
	}})
	router := newTestRouter(t, newTestService(t, &fakeRunner{}, caseDir))

	envelope := postJSON(t, router, "/ping", "wrong-token", struct{}{})
	if envelope.Err != judgeapi.ErrKindTokenError {
		t.Fatalf("err = %s", envelope.Err)
	}

	envelope = postJSON(t, router, "/ping", sha256Hex(testSecret), struct{}{})
	if envelope.Err != "" {
		t.Fatalf("err = %s", envelope.Err)
	}
	var ping pingResponse
	if err := json.Unmarshal(envelope.Data, &ping); err != nil {
		t.Fatal(err)
	}
	if ping.Action != "pong" {
		t.Fatalf("action = %s", ping.Action)
	}
	if ping.CPUCore <= 0 {
		t.Fatalf("cpu_core = %d", ping.CPUCore)
	}
}

func TestHeartbeatReporter(t *testing.T) {
	t.Parallel()

	received := make(chan judgeapi.HeartbeatRequest, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(judgeapi.TokenHeader) != sha256Hex(testSecret) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req judgeapi.HeartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- req
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reporter, err := NewHeartbeatReporter(HeartbeatConfig{
		DispatchURL: upstream.URL,
		ServiceURL:  "http://worker-1:8080",
		Interval:    time.Second,
	}, sha256Hex(testSecret), sysinfo.NewCollector())
	if err != nil {
		t.Fatal(err)
	}

	if err := reporter.send(context.Background()); err != nil {
		t.Fatalf("send() error: %v", err)
	}
	select {
	case req := <-received:
		if req.ServiceURL != "http://worker-1:8080" {
			t.Fatalf("service_url = %s", req.ServiceURL)
		}
		if req.CPUCore <= 0 {
			t.Fatalf("cpu_core = %d", req.CPUCore)
		}
	default:
		t.Fatal("heartbeat not received")
	}
}

func TestHeartbeatRejected(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	reporter, err := NewHeartbeatReporter(HeartbeatConfig{
		DispatchURL: upstream.URL,
		ServiceURL:  "http://worker-1:8080",
	}, "bad", sysinfo.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	if err := reporter.send(context.Background()); err == nil {
		t.Fatal("expected error on rejected heartbeat")
	}
}

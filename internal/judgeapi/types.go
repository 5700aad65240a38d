package judgeapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// TokenHeader carries the sha256 digest of the shared judge secret on every
// dispatcher-to-worker request.
const TokenHeader = "X-Judge-Server-Token"

// HashToken computes the wire form of the shared judge secret.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CompileConfig describes how to turn a source file into an executable.
type CompileConfig struct {
	SrcName        string `json:"src_name"`
	ExeName        string `json:"exe_name"`
	MaxCPUTime     int64  `json:"max_cpu_time"`
	MaxRealTime    int64  `json:"max_real_time"`
	MaxMemory      int64  `json:"max_memory"`
	CompileCommand string `json:"compile_command"`
}

// RunConfig describes how a compiled or interpreted program is executed.
type RunConfig struct {
	Command     string   `json:"command"`
	SeccompRule string   `json:"seccomp_rule"`
	Env         []string `json:"env"`
	// ExeName is the file the source is written to for languages that run
	// without a compile step.
	ExeName string `json:"exe_name,omitempty"`
	// MemoryLimitCheckOnly disables the hard address-space rlimit and only
	// reports usage, for runtimes that pre-reserve large heaps.
	MemoryLimitCheckOnly bool `json:"memory_limit_check_only,omitempty"`
}

// SPJConfig describes how a compiled special judge binary is invoked.
type SPJConfig struct {
	ExeName     string `json:"exe_name"`
	Command     string `json:"command"`
	SeccompRule string `json:"seccomp_rule"`
}

// LanguageConfig bundles the per-language compile and run settings a worker
// needs for one judging attempt.
type LanguageConfig struct {
	Name    string         `json:"name"`
	Compile *CompileConfig `json:"compile,omitempty"`
	Run     RunConfig      `json:"run"`
}

// JudgeRequest is the payload of the worker's judge operation.
type JudgeRequest struct {
	LanguageConfig   LanguageConfig `json:"language_config"`
	Src              string         `json:"src"`
	MaxCPUTime       int64          `json:"max_cpu_time"`
	MaxMemory        int64          `json:"max_memory"`
	TestCaseID       string         `json:"test_case_id"`
	Output           bool           `json:"output"`
	SPJVersion       string         `json:"spj_version,omitempty"`
	SPJConfig        *SPJConfig     `json:"spj_config,omitempty"`
	SPJCompileConfig *CompileConfig `json:"spj_compile_config,omitempty"`
	SPJSrc           string         `json:"spj_src,omitempty"`
}

// CompileSPJRequest is the payload of the worker's compile_spj operation.
type CompileSPJRequest struct {
	Src              string         `json:"src"`
	SPJVersion       string         `json:"spj_version"`
	SPJCompileConfig *CompileConfig `json:"spj_compile_config"`
}

// TestCaseResult is one sandboxed run's outcome as reported by a worker.
type TestCaseResult struct {
	TestCase  string  `json:"test_case"`
	Result    Verdict `json:"result"`
	Error     int     `json:"error"`
	CPUTime   int64   `json:"cpu_time"`
	RealTime  int64   `json:"real_time"`
	Memory    int64   `json:"memory"`
	Signal    int     `json:"signal"`
	ExitCode  int     `json:"exit_code"`
	OutputMD5 string  `json:"output_md5,omitempty"`
	Output    string  `json:"output,omitempty"`
}

// Response is the worker HTTP envelope. Err is empty on success; Data holds
// either the result payload or an error detail string.
type Response struct {
	Err  string          `json:"err,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Worker error kinds carried in Response.Err.
const (
	ErrKindCompileError     = "CompileError"
	ErrKindSPJCompileError  = "SPJCompileError"
	ErrKindJudgeClientError = "JudgeClientError"
	ErrKindServerError      = "ServerError"
	ErrKindTokenError       = "TokenVerificationFailed"
)

// HeartbeatRequest is the periodic self-report a worker posts to the pool.
type HeartbeatRequest struct {
	Hostname       string  `json:"hostname"`
	JudgerVersion  string  `json:"judger_version"`
	CPUCore        int     `json:"cpu_core"`
	CPUUsagePct    float64 `json:"cpu"`
	MemoryUsagePct float64 `json:"memory"`
	ServiceURL     string  `json:"service_url"`
}

// ServerInfo is the worker identity and metrics returned by ping.
type ServerInfo struct {
	Hostname       string  `json:"hostname"`
	JudgerVersion  string  `json:"judger_version"`
	CPUCore        int     `json:"cpu_core"`
	CPUUsagePct    float64 `json:"cpu"`
	MemoryUsagePct float64 `json:"memory"`
}

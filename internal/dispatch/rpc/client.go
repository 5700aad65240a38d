package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
)

// TokenHeader carries the sha256 digest of the shared judge secret.
const TokenHeader = judgeapi.TokenHeader

// TokenProvider yields the hashed shared secret attached to every request.
type TokenProvider interface {
	HashedJudgeToken(ctx context.Context) (string, error)
}

// Client talks to worker execution services over HTTP.
type Client struct {
	http  *http.Client
	token TokenProvider
}

func NewClient(token TokenProvider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		token: token,
	}
}

// Judge sends one job to a worker and returns the per-test-case results.
// A compile failure on the worker comes back as a CompileError carrying the
// captured compiler output.
func (c *Client) Judge(ctx context.Context, serviceURL string, req judgeapi.JudgeRequest) ([]judgeapi.TestCaseResult, error) {
	envelope, err := c.post(ctx, serviceURL+"/judge", req)
	if err != nil {
		return nil, err
	}
	if envelope.Err != "" {
		return nil, decodeWorkerError(envelope)
	}
	var results []judgeapi.TestCaseResult
	if err := json.Unmarshal(envelope.Data, &results); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkerBadResponse, "decode judge results failed")
	}
	return results, nil
}

// CompileSPJ asks a worker to compile a special judge binary. The operation
// is idempotent if the versioned binary already exists on that worker.
func (c *Client) CompileSPJ(ctx context.Context, serviceURL string, req judgeapi.CompileSPJRequest) error {
	envelope, err := c.post(ctx, serviceURL+"/compile_spj", req)
	if err != nil {
		return err
	}
	if envelope.Err != "" {
		return decodeWorkerError(envelope)
	}
	return nil
}

// Ping fetches worker identity and metrics without side effects.
func (c *Client) Ping(ctx context.Context, serviceURL string) (judgeapi.ServerInfo, error) {
	envelope, err := c.post(ctx, serviceURL+"/ping", struct{}{})
	if err != nil {
		return judgeapi.ServerInfo{}, err
	}
	if envelope.Err != "" {
		return judgeapi.ServerInfo{}, decodeWorkerError(envelope)
	}
	var info judgeapi.ServerInfo
	if err := json.Unmarshal(envelope.Data, &info); err != nil {
		return judgeapi.ServerInfo{}, appErr.Wrapf(err, appErr.WorkerBadResponse, "decode server info failed")
	}
	return info, nil
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) (*judgeapi.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "encode request failed")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "build request failed")
	}
	token, err := c.token.HashedJudgeToken(ctx)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(TokenHeader, token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkerTransportError, "judge worker request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkerTransportError, "read worker response failed")
	}
	var envelope judgeapi.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkerBadResponse, "decode worker response failed")
	}
	return &envelope, nil
}

func decodeWorkerError(envelope *judgeapi.Response) error {
	var detail string
	if err := json.Unmarshal(envelope.Data, &detail); err != nil {
		detail = string(envelope.Data)
	}
	switch envelope.Err {
	case judgeapi.ErrKindCompileError:
		return appErr.New(appErr.CompileError).WithMessage(detail)
	case judgeapi.ErrKindSPJCompileError:
		return appErr.New(appErr.SPJCompileError).WithMessage(detail)
	case judgeapi.ErrKindTokenError:
		return appErr.New(appErr.TokenVerifyFailed).WithMessage(detail)
	default:
		return appErr.Newf(appErr.JudgeSystemError, "%s: %s", envelope.Err, detail)
	}
}

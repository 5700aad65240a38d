package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/sysinfo"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
)

const defaultHeartbeatInterval = 5 * time.Second

// HeartbeatConfig tells a worker where and how to announce itself.
type HeartbeatConfig struct {
	// DispatchURL is the pool heartbeat endpoint on the dispatch service.
	DispatchURL string
	// ServiceURL is the base URL under which this worker is reachable; the
	// dispatcher sends judge jobs there.
	ServiceURL string
	Interval   time.Duration
}

// HeartbeatReporter periodically posts host metrics to the dispatch service.
// A worker missing its heartbeats drops out of selection until it reports
// again.
type HeartbeatReporter struct {
	cfg         HeartbeatConfig
	hashedToken string
	collector   *sysinfo.Collector
	http        *http.Client
}

// NewHeartbeatReporter creates a reporter. hashedToken is the sha256 hex
// digest of the shared judge secret.
func NewHeartbeatReporter(cfg HeartbeatConfig, hashedToken string, collector *sysinfo.Collector) (*HeartbeatReporter, error) {
	if cfg.DispatchURL == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("dispatch url is required")
	}
	if cfg.ServiceURL == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("service url is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHeartbeatInterval
	}
	return &HeartbeatReporter{
		cfg:         cfg,
		hashedToken: hashedToken,
		collector:   collector,
		http:        &http.Client{Timeout: cfg.Interval},
	}, nil
}

// Start sends an immediate heartbeat and then keeps reporting until the
// context is cancelled. Individual failures are logged and retried on the
// next tick.
func (r *HeartbeatReporter) Start(ctx context.Context) {
	if err := r.send(ctx); err != nil {
		logger.Warn(ctx, "heartbeat failed", zap.Error(err))
	}
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.send(ctx); err != nil {
				logger.Warn(ctx, "heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (r *HeartbeatReporter) send(ctx context.Context) error {
	info := r.collector.Snapshot()
	payload := judgeapi.HeartbeatRequest{
		Hostname:       info.Hostname,
		JudgerVersion:  info.JudgerVersion,
		CPUCore:        info.CPUCore,
		CPUUsagePct:    info.CPUUsagePct,
		MemoryUsagePct: info.MemoryUsagePct,
		ServiceURL:     r.cfg.ServiceURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode heartbeat failed")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.DispatchURL, bytes.NewReader(body))
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "build heartbeat request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(judgeapi.TokenHeader, r.hashedToken)

	resp, err := r.http.Do(req)
	if err != nil {
		return appErr.Wrapf(err, appErr.WorkerTransportError, "heartbeat request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return appErr.Newf(appErr.HeartbeatRejected, "heartbeat rejected with status %d", resp.StatusCode)
	}
	return nil
}

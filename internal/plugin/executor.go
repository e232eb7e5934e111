package plugin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"synx/internal/model"
	"synx/internal/policy"
)

// nearMissThreshold is the fraction of a plugin's wall-time limit past
// which a still-running execution is worth flagging, per spec.md §4.3
// step 6.
const nearMissThreshold = 0.8

// resourcePollInterval is how often a running subprocess plugin's
// resident set size is sampled against its declared MaxMemoryBytes.
const resourcePollInterval = 200 * time.Millisecond

// waitDelay bounds how long Cmd.Wait keeps reading the child's pipes
// after a SIGKILL before giving up, so a subprocess that ignores the
// kill signal can't hang the executor indefinitely.
const waitDelay = 2 * time.Second

// PluginContext groups the working directory, a slice of configuration
// relevant to a plugin, the active security policy, and the effective
// resource limits for one invocation. Execute does not build one, and
// Plugin.Validate does not receive one: it gets only ctx, path and
// content.
type PluginContext struct {
	WorkingDir string
	Config     map[string]any
	Policy     *policy.Evaluator
	Limits     model.ResourceLimits
}

// Executor runs one plugin against one file, enforcing a wall-clock
// timeout, recording execution statistics, and emitting a near-miss
// audit record when an execution runs past nearMissThreshold of its
// limit before completing.
type Executor struct {
	registry      *Registry
	policy        *policy.Evaluator
	audit         *policy.AuditLogger
	defaultLimits model.ResourceLimits
}

// NewExecutor builds an Executor bound to a Registry and policy
// Evaluator. audit may be nil to skip near-miss/resource audit events.
func NewExecutor(registry *Registry, ev *policy.Evaluator, audit *policy.AuditLogger, defaults model.ResourceLimits) *Executor {
	return &Executor{registry: registry, policy: ev, audit: audit, defaultLimits: defaults}
}

// Execute resolves the plugin (ToolMissing if absent or not Active),
// resolves its effective limits, checks the policy, enforces a
// wall-clock timeout, records stats, and emits a near-miss audit record
// if warranted. No PluginContext is constructed for the call.
func (x *Executor) Execute(ctx context.Context, pluginID, path string, content []byte) model.ValidationOutcome {
	p, ok := x.registry.Get(pluginID)
	if !ok {
		return model.ToolMissing(pluginID)
	}
	if state, _ := x.registry.State(pluginID); state != model.StateActive {
		return model.ToolMissing(pluginID)
	}

	limits := p.Descriptor().ResourceLimits
	if limits.MaxWallTime <= 0 {
		limits = x.defaultLimits
	}

	if x.policy != nil {
		decision := x.policy.Check(pluginID, model.ActionUseTool, pluginID)
		if !decision.Allowed {
			return model.PolicyDenied(pluginID)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if limits.MaxWallTime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, limits.MaxWallTime)
		defer cancel()
	}

	start := time.Now()
	outcome := x.runWithNearMissAudit(runCtx, p, pluginID, path, content, limits)
	wall := time.Since(start)
	outcome.WallTime = wall

	x.registry.recordExecution(pluginID, wall, outcome.IsValid())
	return outcome
}

// runWithNearMissAudit runs p.Validate to completion or cancellation,
// emitting an Info audit record if the call is still running once
// nearMissThreshold of its limit has elapsed.
func (x *Executor) runWithNearMissAudit(ctx context.Context, p Plugin, pluginID, path string, content []byte, limits model.ResourceLimits) model.ValidationOutcome {
	type result struct {
		outcome model.ValidationOutcome
		err     error
	}
	resultCh := make(chan result, 1)

	go func() {
		outcome, err := p.Validate(ctx, path, content)
		resultCh <- result{outcome: outcome, err: err}
	}()

	var nearMiss <-chan time.Time
	if limits.MaxWallTime > 0 {
		timer := time.NewTimer(time.Duration(float64(limits.MaxWallTime) * nearMissThreshold))
		defer timer.Stop()
		nearMiss = timer.C
	}

	for {
		select {
		case r := <-resultCh:
			if r.err != nil {
				return model.InternalError(pluginID, r.err.Error())
			}
			return r.outcome

		case <-nearMiss:
			x.emitNearMiss(pluginID, path, limits)
			nearMiss = nil // only warn once

		case <-ctx.Done():
			return model.Timeout(pluginID, limits.MaxWallTime)
		}
	}
}

func (x *Executor) emitNearMiss(pluginID, path string, limits model.ResourceLimits) {
	if x.audit == nil {
		return
	}
	x.audit.Emit(model.AuditEvent{
		Kind:            model.AuditResourceEvent,
		Severity:        model.AuditInfo,
		SourceComponent: "plugin.Executor",
		Description:     fmt.Sprintf("plugin %s near wall-time limit validating %s", pluginID, path),
		Context: map[string]any{
			"plugin_id": pluginID,
			"path":      path,
			"limit_ms":  limits.MaxWallTime.Milliseconds(),
			"threshold": nearMissThreshold,
		},
	})
}

// SubprocessPlugin wraps an out-of-process validator: a compiled
// executable that speaks a fixed request/response protocol over
// stdin/stdout. This is the only form of "dynamically referenced"
// plugin the registry accepts — the core itself never loads or
// interprets foreign code, it only starts a child process and talks
// to it over pipes, the same boundary exec.CommandContext already
// enforces.
type SubprocessPlugin struct {
	desc       model.PluginDescriptor
	entryPath  string
	workingDir string
}

// NewSubprocessPlugin wraps a resolved manifest entry point.
func NewSubprocessPlugin(desc model.PluginDescriptor, entryPath, workingDir string) *SubprocessPlugin {
	return &SubprocessPlugin{desc: desc, entryPath: entryPath, workingDir: workingDir}
}

func (s *SubprocessPlugin) Descriptor() model.PluginDescriptor { return s.desc }

// Initialize is a no-op: the subprocess is started fresh per
// invocation rather than kept resident, so there is nothing to warm up.
func (s *SubprocessPlugin) Initialize(ctx context.Context) error { return nil }

// Cleanup is a no-op for the same reason Initialize is.
func (s *SubprocessPlugin) Cleanup(ctx context.Context) error { return nil }

// Validate starts the plugin's executable, writes the request protocol
// message to its stdin, and decodes its stdout response. ctx governs
// both the wall-clock timeout and cancellation: exec.CommandContext
// sends the child SIGKILL (via its process group on Unix) the moment
// ctx is done, which is the "forceful" cancellation spec.md §4.3
// requires for subprocess plugins.
func (s *SubprocessPlugin) Validate(ctx context.Context, path string, content []byte) (model.ValidationOutcome, error) {
	req, err := encodeRequest(path, content)
	if err != nil {
		return model.ValidationOutcome{}, fmt.Errorf("encode plugin request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.entryPath)
	cmd.Dir = s.workingDir
	cmd.Stdin = req
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return model.ValidationOutcome{}, fmt.Errorf("start plugin %s: %w", s.desc.ID, err)
	}

	stopPolling := make(chan struct{})
	if limit := s.desc.ResourceLimits.MaxMemoryBytes; limit > 0 {
		go s.enforceMemoryLimit(cmd, limit, stopPolling)
	}

	err = cmd.Wait()
	close(stopPolling)

	if err != nil {
		if ctx.Err() != nil {
			return model.ValidationOutcome{}, ctx.Err()
		}
		return model.ValidationOutcome{}, fmt.Errorf("run plugin %s: %w (stderr: %s)", s.desc.ID, err, stderr.String())
	}

	return decodeResponse(s.desc.ID, stdout.Bytes())
}

// enforceMemoryLimit polls the running child's RSS every
// resourcePollInterval and kills it outright if it exceeds limit.
// Polling is best-effort: a platform with no /proc/<pid>/status (or a
// process that has already exited) simply stops silently.
func (s *SubprocessPlugin) enforceMemoryLimit(cmd *exec.Cmd, limit int64, stop <-chan struct{}) {
	ticker := time.NewTicker(resourcePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rss, err := readRSSBytes(cmd.Process.Pid)
			if err != nil {
				continue
			}
			if rss > limit {
				_ = cmd.Process.Kill()
				return
			}
		}
	}
}

// Package policy implements the Security Policy Engine and Audit Log
// (spec.md §4.4-4.5): every tool invocation and file operation is
// checked against a declarative SecurityPolicy before it runs, and the
// outcome is recorded as a signed, severity-tagged audit event.
package policy

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"synx/internal/model"
)

// ToolPolicy restricts what a single tool/plugin may do.
type ToolPolicy struct {
	AllowedOperations map[model.Permission]bool
}

// UserRestrictions narrows what one user/subject may do, on top of the
// global and per-tool/per-path policy.
type UserRestrictions struct {
	AllowedTools      map[string]bool
	AllowedOperations map[model.Permission]bool
}

// GlobalPolicy holds settings that apply regardless of tool or path.
type GlobalPolicy struct {
	Strict             bool
	AllowNetwork       bool
	MaxProcesses       int
	ResourceLimits     model.ResourceLimits
	AllowedWorkingDirs []string
}

// SecurityPolicy is the full declarative policy evaluated on every
// request, per spec.md §3/§4.4. Most-specific-wins resolution order:
// per-user ∩ per-tool ∩ per-path ∩ global.
type SecurityPolicy struct {
	Global           GlobalPolicy
	PerTool          map[string]ToolPolicy
	PerPath          map[string]map[model.Permission]bool
	RestrictedPaths  []string
	PerUser          map[string]UserRestrictions
}

// NewPolicy returns an empty, permissive-by-default policy: no
// restricted paths, no per-tool/per-path/per-user entries. Check
// falls through to Allow for any request against an empty policy.
func NewPolicy() SecurityPolicy {
	return SecurityPolicy{
		PerTool:         make(map[string]ToolPolicy),
		PerPath:         make(map[string]map[model.Permission]bool),
		PerUser:         make(map[string]UserRestrictions),
	}
}

// Evaluator checks requests against an immutable policy snapshot.
// Configuration reloads swap in a new snapshot atomically. Each Check
// reads the snapshot current at that call, so a scan that spans a
// Reload uses the new policy for every check made after the swap.
type Evaluator struct {
	mu     sync.RWMutex
	policy SecurityPolicy
	audit  *AuditLogger // may be nil: checks still work, just unaudited
}

// NewEvaluator wraps a policy snapshot. audit may be nil for tests or
// contexts that log elsewhere.
func NewEvaluator(p SecurityPolicy, audit *AuditLogger) *Evaluator {
	return &Evaluator{policy: p, audit: audit}
}

// Snapshot returns the currently active policy. Reload swaps it out
// atomically for new requests; any evaluation already in flight
// continues to use the snapshot it read.
func (e *Evaluator) Snapshot() SecurityPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Reload atomically replaces the active policy snapshot.
func (e *Evaluator) Reload(p SecurityPolicy) {
	e.mu.Lock()
	e.policy = p
	e.mu.Unlock()
}

// Check evaluates one (subject, action, resource) request against the
// current policy, following spec.md §4.4's six-step resolution chain,
// and emits an AuthorizationEvent audit record (best-effort; a nil
// AuditLogger or failed emit never blocks the decision).
func (e *Evaluator) Check(subject string, action model.Action, resource string) model.PolicyDecision {
	p := e.Snapshot()
	decision := evaluate(p, subject, action, resource)
	e.recordAuthorization(subject, action, resource, decision)
	return decision
}

func evaluate(p SecurityPolicy, subject string, action model.Action, resource string) model.PolicyDecision {
	isFileOp := isFileAction(action)
	isToolAction := action == model.ActionUseTool

	if restrictions, ok := p.PerUser[subject]; ok {
		// 1. Tool whitelist.
		if isToolAction && restrictions.AllowedTools != nil && !restrictions.AllowedTools[resource] {
			return model.PolicyDecision{Allowed: false, Reason: "tool not in user's allowed_tools"}
		}
		// 2. File-op whitelist.
		if isFileOp && restrictions.AllowedOperations != nil {
			perm := actionPermission(action)
			if !restrictions.AllowedOperations[perm] {
				return model.PolicyDecision{Allowed: false, Reason: "operation not in user's allowed_operations"}
			}
		}
	}

	// 3. Restricted path prefix.
	if isFileOp || isToolAction {
		if matchesRestrictedPath(p.RestrictedPaths, resource) {
			return model.PolicyDecision{Allowed: false, Reason: "path is under a restricted_paths prefix"}
		}
	}

	// 4. Path-specific permission set.
	if isFileOp {
		if perms, ok := lookupPerPath(p.PerPath, resource); ok {
			perm := actionPermission(action)
			if !perms[perm] {
				return model.PolicyDecision{Allowed: false, Reason: "path permission set does not include " + string(perm)}
			}
		}
	}

	// 5. Per-tool operation intersection.
	if isToolAction {
		if tp, ok := p.PerTool[resource]; ok && tp.AllowedOperations != nil {
			if !intersects(tp.AllowedOperations, requiredPermissionsForTool()) {
				return model.PolicyDecision{Allowed: false, Reason: "requested operation disjoint from tool_policy.allowed_operations"}
			}
		}
	}

	// 6. Default allow.
	return model.PolicyDecision{Allowed: true, Reason: "no restriction matched"}
}

// requiredPermissionsForTool is a placeholder intersection set used when
// a tool-use request carries no finer-grained permission of its own;
// callers that need a specific permission should check it via a
// file-op action against the tool's working path instead.
func requiredPermissionsForTool() map[model.Permission]bool {
	return map[model.Permission]bool{model.PermissionExecute: true}
}

func intersects(a, b map[model.Permission]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

func isFileAction(a model.Action) bool {
	switch a {
	case model.ActionRead, model.ActionWrite, model.ActionExecute:
		return true
	default:
		return false
	}
}

func actionPermission(a model.Action) model.Permission {
	switch a {
	case model.ActionRead:
		return model.PermissionRead
	case model.ActionWrite:
		return model.PermissionWrite
	case model.ActionExecute:
		return model.PermissionExecute
	case model.ActionNetwork:
		return model.PermissionNetwork
	case model.ActionSpawnSubprocess:
		return model.PermissionCreateProcess
	default:
		return model.PermissionRead
	}
}

func matchesRestrictedPath(restricted []string, resource string) bool {
	if resource == "" {
		return false
	}
	clean := filepath.Clean(resource)
	for _, prefix := range restricted {
		cleanPrefix := filepath.Clean(prefix)
		if clean == cleanPrefix || strings.HasPrefix(clean, cleanPrefix+string(filepath.Separator)) {
			return true
		}
		if ok, _ := doublestar.Match(cleanPrefix, clean); ok {
			return true
		}
	}
	return false
}

func lookupPerPath(perPath map[string]map[model.Permission]bool, resource string) (map[model.Permission]bool, bool) {
	clean := filepath.Clean(resource)
	// Most-specific-wins: prefer an exact match, then the longest
	// matching prefix/glob.
	if perms, ok := perPath[clean]; ok {
		return perms, true
	}
	var best string
	var bestPerms map[model.Permission]bool
	for prefix, perms := range perPath {
		cleanPrefix := filepath.Clean(prefix)
		matched := strings.HasPrefix(clean, cleanPrefix+string(filepath.Separator))
		if !matched {
			if ok, _ := doublestar.Match(cleanPrefix, clean); ok {
				matched = true
			}
		}
		if matched && len(cleanPrefix) > len(best) {
			best = cleanPrefix
			bestPerms = perms
		}
	}
	if bestPerms != nil {
		return bestPerms, true
	}
	return nil, false
}

// ResourceUsage is a point-in-time sample for CheckResources.
type ResourceUsage struct {
	ProcessID  int
	MemoryBytes int64
	CPUPercent  float64
	IORateMBps  float64
	WallSeconds float64
}

// ResourceVerdict is the outcome of a CheckResources call.
type ResourceVerdict int

const (
	ResourceOK ResourceVerdict = iota
	ResourceWarning
	ResourceCritical
)

// CheckResources compares a running plugin's observed usage against
// its effective ResourceLimits. It never terminates anything itself —
// callers decide what to do with a Critical verdict — and always
// emits a ResourceEvent audit record.
func (e *Evaluator) CheckResources(pluginID string, usage ResourceUsage, limits model.ResourceLimits) ResourceVerdict {
	verdict := ResourceOK
	reason := "within limits"

	over := func(actual float64, limit float64) float64 {
		if limit <= 0 {
			return 0
		}
		return actual / limit
	}

	ratios := []float64{
		over(float64(usage.MemoryBytes), float64(limits.MaxMemoryBytes)),
		over(usage.WallSeconds, limits.MaxWallTime.Seconds()),
	}
	max := 0.0
	for _, r := range ratios {
		if r > max {
			max = r
		}
	}

	switch {
	case max > 2:
		verdict = ResourceCritical
		reason = "usage exceeds 2x limit"
	case max > 1:
		verdict = ResourceWarning
		reason = "usage exceeds limit"
	}

	e.recordResourceEvent(pluginID, usage, verdict, reason)
	return verdict
}

// VerifyConfiguration validates a configuration document against
// policy-defined criteria (spec.md §4.4's verify_configuration). The
// synx core itself imposes no forbidden-flags list; callers that need
// one supply it via forbidden.
func (e *Evaluator) VerifyConfiguration(path string, content []byte, forbidden []string) error {
	var issues []string
	text := string(content)
	for _, flag := range forbidden {
		if strings.Contains(text, flag) {
			issues = append(issues, "forbidden flag present: "+flag)
		}
	}
	e.recordConfigurationEvent(path, issues)
	if len(issues) > 0 {
		return &ConfigValidationError{Path: path, Issues: issues}
	}
	return nil
}

// ConfigValidationError reports why VerifyConfiguration rejected a
// configuration document.
type ConfigValidationError struct {
	Path   string
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "configuration invalid (" + e.Path + "): " + strings.Join(e.Issues, "; ")
}

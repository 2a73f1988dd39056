package job

import (
	"context"
	"encoding/json"
)

// RunAsKey is the context key under which the resolved run-as identity is
// injected into the execution context.
const RunAsKey = "runAs"

// IdentityResolver resolves a run-as identity name to the identity object
// injected into the execution context.
type IdentityResolver interface {
	Resolve(ctx context.Context, name string) (map[string]interface{}, error)
}

// ResolvedContext is the assembled execution input for the executor.
// Resolution failures degrade to an empty context rather than aborting the
// job; Degraded marks that this happened so callers and tests can observe it.
type ResolvedContext struct {
	ServiceName    string
	Context        map[string]interface{}
	Degraded       bool
	DegradedReason string
}

// ResolveContext assembles the executor input from the row's stored
// payload reference and run-as identity.
func (c *Controller) ResolveContext(ctx context.Context) (*ResolvedContext, error) {
	j, err := c.getJob(ctx)
	if err != nil {
		return nil, err
	}

	rc := &ResolvedContext{
		ServiceName: j.ServiceName,
		Context:     map[string]interface{}{},
	}

	if j.RuntimeDataID != "" {
		data, err := c.store.GetRuntimeData(ctx, j.RuntimeDataID)
		switch {
		case err != nil:
			c.degradeContext(rc, "runtime data load failed", err)
		case data == nil:
			c.degradeContext(rc, "runtime data missing", nil)
		default:
			var payload map[string]interface{}
			if err := json.Unmarshal(data, &payload); err != nil {
				c.degradeContext(rc, "runtime data deserialize failed", err)
			} else {
				rc.Context = payload
			}
		}
	}

	if j.RunAs != "" {
		if c.opts.Identity == nil {
			c.degradeContext(rc, "no identity resolver configured", nil)
		} else if identity, err := c.opts.Identity.Resolve(ctx, j.RunAs); err != nil {
			c.degradeContext(rc, "run-as identity lookup failed", err)
		} else {
			rc.Context[RunAsKey] = identity
		}
	}

	return rc, nil
}

// degradeContext marks the resolved context degraded and emits the
// structured warning callers monitor.
func (c *Controller) degradeContext(rc *ResolvedContext, reason string, err error) {
	rc.Degraded = true
	if rc.DegradedReason == "" {
		rc.DegradedReason = reason
	}
	c.log.Warnw("Job context degraded to empty",
		"job_id", c.jobID,
		"reason", reason,
		"error", err)
}

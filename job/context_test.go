package job

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldmark/joblane/errors"
)

func TestResolveContextPayload(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	payloadID, err := f.store.PutRuntimeData(ctx, "", []byte(`{"orderId":"ord-17","qty":3}`))
	require.NoError(t, err)

	id := f.seedJob(t, func(j *Job) {
		j.RuntimeDataID = payloadID
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo.echo", rc.ServiceName)
	assert.False(t, rc.Degraded)
	assert.Equal(t, "ord-17", rc.Context["orderId"])
	assert.Equal(t, float64(3), rc.Context["qty"])
}

func TestResolveContextNoPayloadReference(t *testing.T) {
	f := newControllerFixture(t)
	id := f.seedJob(t, nil)
	c := f.controller(t, id)

	rc, err := c.ResolveContext(context.Background())
	require.NoError(t, err)
	assert.False(t, rc.Degraded)
	assert.Empty(t, rc.Context)
}

func TestResolveContextMissingPayloadDegrades(t *testing.T) {
	f := newControllerFixture(t)
	id := f.seedJob(t, func(j *Job) {
		j.RuntimeDataID = "no-such-payload"
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(context.Background())
	require.NoError(t, err)
	assert.True(t, rc.Degraded)
	assert.Equal(t, "runtime data missing", rc.DegradedReason)
	assert.Empty(t, rc.Context)
}

func TestResolveContextBadPayloadDegrades(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	payloadID, err := f.store.PutRuntimeData(ctx, "", []byte(`{not json`))
	require.NoError(t, err)

	id := f.seedJob(t, func(j *Job) {
		j.RuntimeDataID = payloadID
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(ctx)
	require.NoError(t, err)
	assert.True(t, rc.Degraded)
	assert.Equal(t, "runtime data deserialize failed", rc.DegradedReason)
	assert.Empty(t, rc.Context)

	warned := false
	for _, entry := range f.logs.All() {
		if entry.Level == zap.WarnLevel && strings.Contains(entry.Message, "context degraded") {
			warned = true
		}
	}
	assert.True(t, warned, "expected a degradation warning to be logged")
}

func TestResolveContextInjectsRunAsIdentity(t *testing.T) {
	f := newControllerFixture(t)
	f.opts.Identity = &fakeIdentityResolver{
		identity: map[string]interface{}{"userLoginId": "flow-admin"},
	}

	id := f.seedJob(t, func(j *Job) {
		j.RunAs = "flow-admin"
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(context.Background())
	require.NoError(t, err)
	assert.False(t, rc.Degraded)

	identity, ok := rc.Context[RunAsKey].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "flow-admin", identity["userLoginId"])
}

func TestResolveContextRunAsLookupFailureDegrades(t *testing.T) {
	f := newControllerFixture(t)
	f.opts.Identity = &fakeIdentityResolver{err: errors.New("directory unavailable")}

	id := f.seedJob(t, func(j *Job) {
		j.RunAs = "flow-admin"
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(context.Background())
	require.NoError(t, err)
	assert.True(t, rc.Degraded)
	assert.Equal(t, "run-as identity lookup failed", rc.DegradedReason)
	assert.NotContains(t, rc.Context, RunAsKey)
}

func TestResolveContextRunAsWithoutResolverDegrades(t *testing.T) {
	f := newControllerFixture(t)
	id := f.seedJob(t, func(j *Job) {
		j.RunAs = "flow-admin"
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(context.Background())
	require.NoError(t, err)
	assert.True(t, rc.Degraded)
	assert.Equal(t, "no identity resolver configured", rc.DegradedReason)
}

func TestResolveContextFirstDegradationReasonWins(t *testing.T) {
	f := newControllerFixture(t)
	id := f.seedJob(t, func(j *Job) {
		j.RuntimeDataID = "no-such-payload"
		j.RunAs = "flow-admin"
	})
	c := f.controller(t, id)

	rc, err := c.ResolveContext(context.Background())
	require.NoError(t, err)
	assert.True(t, rc.Degraded)
	assert.Equal(t, "runtime data missing", rc.DegradedReason)
}

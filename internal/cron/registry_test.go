package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	expiry := &stubJob{name: "signing-expiry"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(expiry, nil, retention)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, expiry, jobs[0])
	assert.Same(t, retention, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "caller must not mutate registry state")
}

func TestRegistryRejectsDuplicateAndUnnamedJobs(t *testing.T) {
	var registry Registry
	require.NoError(t, registry.Register(&stubJob{name: "signing-expiry"}))
	assert.Error(t, registry.Register(&stubJob{name: "signing-expiry"}))
	assert.Error(t, registry.Register(&stubJob{name: "  "}))
	assert.Error(t, registry.Register(nil))
	assert.Len(t, registry.Jobs(), 1)

	assert.Len(t, NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}).Jobs(), 1)
}

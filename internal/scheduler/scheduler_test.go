package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

type capturePublisher struct {
	jobs []fetch.JobMessage
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, job fetch.JobMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, job)
	return "msg-1", nil
}

func (p *capturePublisher) Close() error { return nil }

func sources() []fetch.SourceConfig {
	return []fetch.SourceConfig{
		{Name: "alpha", Adapter: "jsonfeed", Active: true},
		{Name: "bravo", Adapter: "jsonfeed", Active: true},
		{Name: "charlie", Adapter: "htmltable", Active: true},
		{Name: "dormant", Adapter: "htmltable", Active: false},
	}
}

func TestScheduleCatchAllWithoutDeployments(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	s := New(sources(), nil, pub, nil)

	n, err := s.Schedule(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, pub.jobs, 1)

	job := pub.jobs[0]
	require.Equal(t, "all", job.Name)
	require.Equal(t, "all", job.Suffix)
	require.Len(t, job.Sources, 3) // active only
}

func TestSchedulePerDeploymentJobs(t *testing.T) {
	t.Parallel()

	deployments := []fetch.Deployment{
		{Name: "feeds", Adapter: "jsonfeed", Offset: 3},
		{Name: "scraped", Adapter: "htmltable"},
		{Name: "nightly", Adapter: "jsonfeed", Resolution: "daily"},
	}
	pub := &capturePublisher{}
	s := New(sources(), deployments, pub, nil)

	n, err := s.Schedule(context.Background(), "hourly")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, "feeds", pub.jobs[0].Name)
	require.Equal(t, 3, pub.jobs[0].Offset)
	require.Len(t, pub.jobs[0].Sources, 2)

	require.Equal(t, "scraped", pub.jobs[1].Name)
	require.Len(t, pub.jobs[1].Sources, 1)
	require.Equal(t, "charlie", pub.jobs[1].Sources[0].Name)
}

func TestScheduleResolutionFilter(t *testing.T) {
	t.Parallel()

	deployments := []fetch.Deployment{
		{Name: "nightly", Adapter: "jsonfeed", Resolution: "daily"},
	}
	pub := &capturePublisher{}
	s := New(sources(), deployments, pub, nil)

	n, err := s.Schedule(context.Background(), "daily")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.Schedule(context.Background(), "hourly")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestScheduleSkipsEmptyDeployment(t *testing.T) {
	t.Parallel()

	deployments := []fetch.Deployment{
		{Name: "ghost", Source: "nonexistent"},
		{Name: "feeds", Adapter: "jsonfeed"},
	}
	pub := &capturePublisher{}
	s := New(sources(), deployments, pub, nil)

	n, err := s.Schedule(context.Background(), "hourly")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "feeds", pub.jobs[0].Name)
}

func TestSchedulePublishFailureStops(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{err: errors.New("broker unavailable")}
	s := New(sources(), nil, pub, nil)

	n, err := s.Schedule(context.Background(), "hourly")
	require.Error(t, err)
	require.Equal(t, 0, n)
}

func TestScheduleNamedSourceIncludesInactive(t *testing.T) {
	t.Parallel()

	deployments := []fetch.Deployment{
		{Name: "revive", Source: "dormant"},
	}
	pub := &capturePublisher{}
	s := New(sources(), deployments, pub, nil)

	n, err := s.Schedule(context.Background(), "hourly")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, pub.jobs[0].Sources, 1)
	require.Equal(t, "dormant", pub.jobs[0].Sources[0].Name)
}

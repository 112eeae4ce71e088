package models

import (
	"strings"
	"time"
)

// Provider identifies the cloud backing a region
type Provider string

const (
	ProviderAWS   Provider = "AWS"
	ProviderAzure Provider = "AZURE"
	ProviderGCP   Provider = "GCP"
	ProviderKVM   Provider = "KVM"
)

// ParseProvider normalizes a provider tag as reported by the platform
func ParseProvider(s string) Provider {
	return Provider(strings.ToUpper(strings.TrimSpace(s)))
}

// CloudRegion scopes VM discovery to a single (provider, region code) pair
type CloudRegion struct {
	ID       int64    `json:"id"`
	Provider Provider `json:"provider"`
	Code     string   `json:"regionCode"`
	Name     string   `json:"name"`
}

func (r CloudRegion) String() string {
	return string(r.Provider) + "/" + r.Code
}

// VirtualMachine is a running cloud instance as seen by the provider
type VirtualMachine struct {
	InstanceID string            `json:"instanceId"`
	Name       string            `json:"name"`
	Provider   Provider          `json:"provider"`
	PrivateIP  string            `json:"privateIp"`
	Tags       map[string]string `json:"tags"`
}

// ClusterNode is a registered worker node
type ClusterNode struct {
	Name      string            `json:"name"`
	Addresses []string          `json:"addresses"`
	Labels    map[string]string `json:"labels"`
	JobID     string            `json:"jobId,omitempty"`
}

// JobStatus is the lifecycle state of a compute job (pipeline run)
type JobStatus string

const (
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusPausing  JobStatus = "PAUSING"
	JobStatusPaused   JobStatus = "PAUSED"
	JobStatusResuming JobStatus = "RESUMING"
	JobStatusSuccess  JobStatus = "SUCCESS"
	JobStatusFailure  JobStatus = "FAILURE"
	JobStatusStopped  JobStatus = "STOPPED"
)

// ParseJobStatus matches status names case-insensitively
func ParseJobStatus(s string) JobStatus {
	return JobStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// IsFinal reports whether no further transition can happen from this status
func (s JobStatus) IsFinal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailure, JobStatusStopped:
		return true
	default:
		return false
	}
}

// ComputeJob is the subset of a pipeline run the reconciler cares about
type ComputeJob struct {
	ID     int64     `json:"id"`
	Status JobStatus `json:"status"`
}

// ThresholdEvent records a metric that went over its configured limit
type ThresholdEvent struct {
	Key       string    `json:"key"`
	Threshold int64     `json:"threshold"`
	Actual    int64     `json:"actual"`
	Timestamp time.Time `json:"timestamp"`
}

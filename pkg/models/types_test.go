package models

import "testing"

func TestJobStatus_IsFinal(t *testing.T) {
	tests := []struct {
		status JobStatus
		final  bool
	}{
		{JobStatusRunning, false},
		{JobStatusPausing, false},
		{JobStatusPaused, false},
		{JobStatusResuming, false},
		{JobStatusSuccess, true},
		{JobStatusFailure, true},
		{JobStatusStopped, true},
		{JobStatus("UNKNOWN"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsFinal(); got != tt.final {
				t.Errorf("IsFinal() = %v, want %v", got, tt.final)
			}
		})
	}
}

func TestParseJobStatus(t *testing.T) {
	if got := ParseJobStatus(" stopped "); got != JobStatusStopped {
		t.Errorf("Expected STOPPED, got %s", got)
	}
	if got := ParseJobStatus("running"); got.IsFinal() {
		t.Error("Expected running to be non-final")
	}
}

func TestParseProvider(t *testing.T) {
	if got := ParseProvider("kvm"); got != ProviderKVM {
		t.Errorf("Expected KVM, got %s", got)
	}
	region := CloudRegion{Provider: ProviderAWS, Code: "eu-central-1"}
	if region.String() != "AWS/eu-central-1" {
		t.Errorf("Unexpected region string %s", region.String())
	}
}

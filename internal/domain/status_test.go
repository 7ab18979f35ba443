package domain

import (
	"errors"
	"testing"
)

func TestParseSubmissionStatusCaseInsensitive(t *testing.T) {
	tests := []struct {
		raw  string
		want SubmissionStatus
	}{
		{raw: "completed", want: SubmissionCompleted},
		{raw: "Completed", want: SubmissionCompleted},
		{raw: "COMPLETED", want: SubmissionCompleted},
		{raw: " graded ", want: SubmissionCompleted},
		{raw: "Evaluated", want: SubmissionCompleted},
		{raw: "resolved", want: SubmissionCompleted},
		{raw: "in_review", want: SubmissionInReview},
		{raw: "Under_Review", want: SubmissionInReview},
		{raw: "submitted", want: SubmissionPending},
		{raw: "QUEUED", want: SubmissionPending},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSubmissionStatus(tt.raw)
			if err != nil {
				t.Fatalf("ParseSubmissionStatus(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseSubmissionStatus(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseSubmissionStatusUnknown(t *testing.T) {
	got, err := ParseSubmissionStatus("archived")
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("want ErrUnknownStatus, got %v", err)
	}
	if got != SubmissionUnknown {
		t.Fatalf("unknown raw value classified as %v", got)
	}
}

func TestParseCallStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    CallStatus
		wantErr bool
	}{
		{raw: "Scheduled", want: CallScheduled},
		{raw: "BOOKED", want: CallScheduled},
		{raw: "completed", want: CallCompleted},
		{raw: "attended", want: CallCompleted},
		{raw: "requested", want: CallRequested},
		{raw: "cancelled-by-mars", want: CallUnknown, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseCallStatus(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCallStatus(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseCallStatus(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

package database

import "testing"

func TestLicenseStateDerivation(t *testing.T) {
	tests := []struct {
		name    string
		license License
		want    LicenseState
	}{
		{
			name:    "fresh submission",
			license: License{Status: StatusPendingVerification},
			want:    StatePendingVerification,
		},
		{
			name:    "verified but unsent",
			license: License{Status: StatusPendingVerification, AdminVerified: true},
			want:    StateVerifiedUnsent,
		},
		{
			name:    "active",
			license: License{Status: StatusActive, AdminVerified: true, EmailSent: true},
			want:    StateActive,
		},
		{
			name:    "rejected before verification",
			license: License{Status: StatusRejected},
			want:    StateRejected,
		},
		{
			name:    "rejected after verification keeps flag history",
			license: License{Status: StatusRejected, AdminVerified: true},
			want:    StateRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.license.State(); got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

package cassandra

import "testing"

func TestDeriveOperationMode(t *testing.T) {
	tests := []struct {
		name string
		snap MetricsSnapshot
		want OperationMode
	}{
		{
			name: "all hosts down is emergency",
			snap: MetricsSnapshot{UpHosts: 0, TotalHosts: 3, SuccessRate: 1.0},
			want: ModeEmergency,
		},
		{
			name: "minority of hosts up is read-only",
			snap: MetricsSnapshot{UpHosts: 1, TotalHosts: 4, SuccessRate: 1.0},
			want: ModeReadOnly,
		},
		{
			name: "majority up but one down is degraded",
			snap: MetricsSnapshot{UpHosts: 2, TotalHosts: 3, SuccessRate: 1.0},
			want: ModeDegraded,
		},
		{
			name: "all up but low success rate is degraded",
			snap: MetricsSnapshot{UpHosts: 3, TotalHosts: 3, SuccessRate: 0.5},
			want: ModeDegraded,
		},
		{
			name: "all hosts up with good success rate is normal",
			snap: MetricsSnapshot{UpHosts: 3, TotalHosts: 3, SuccessRate: 0.99},
			want: ModeNormal,
		},
		{
			name: "no hosts tracked yet is emergency",
			snap: MetricsSnapshot{UpHosts: 0, TotalHosts: 0, SuccessRate: 1.0},
			want: ModeEmergency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveOperationMode(tt.snap); got != tt.want {
				t.Errorf("deriveOperationMode(%+v) = %v, want %v", tt.snap, got, tt.want)
			}
		})
	}
}

func TestOperationModeString(t *testing.T) {
	tests := []struct {
		mode OperationMode
		want string
	}{
		{ModeNormal, "Normal"},
		{ModeDegraded, "Degraded"},
		{ModeReadOnly, "ReadOnly"},
		{ModeEmergency, "Emergency"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

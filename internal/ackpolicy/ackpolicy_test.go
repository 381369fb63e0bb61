package ackpolicy

import (
	"testing"

	"github.com/d3sync/hl7proxy/internal/config"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name          string
		direction     config.ProxyDirection
		source        Side
		destConnected bool
		want          Timing
	}{
		{"policy A analyzer, dest up", config.DirListenerToClient, Analyzer, true, Now},
		{"policy A analyzer, dest down", config.DirListenerToClient, Analyzer, false, Now},
		{"policy A LIS, dest up", config.DirListenerToClient, LIS, true, Now},
		{"policy A LIS, dest down", config.DirListenerToClient, LIS, false, Now},
		{"policy B LIS, dest up", config.DirClientToListener, LIS, true, Now},
		{"policy B LIS, dest down", config.DirClientToListener, LIS, false, Now},
		{"policy B analyzer, LIS up", config.DirClientToListener, Analyzer, true, AfterForward},
		{"policy B analyzer, LIS down", config.DirClientToListener, Analyzer, false, Deferred},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := For(tt.direction, tt.source, tt.destConnected); got != tt.want {
				t.Errorf("For() = %v, want %v", got, tt.want)
			}
		})
	}
}

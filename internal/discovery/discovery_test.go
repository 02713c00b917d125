package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial/enumerator"
)

func TestIsSensorPort(t *testing.T) {
	tests := []struct {
		name string
		d    enumerator.PortDetails
		want bool
	}{
		{
			name: "exact match",
			d:    enumerator.PortDetails{IsUSB: true, VID: "16D0", PID: "0ED5"},
			want: true,
		},
		{
			name: "lowercase hex",
			d:    enumerator.PortDetails{IsUSB: true, VID: "16d0", PID: "0ed5"},
			want: true,
		},
		{
			name: "not usb",
			d:    enumerator.PortDetails{IsUSB: false, VID: "16D0", PID: "0ED5"},
			want: false,
		},
		{
			name: "wrong vendor",
			d:    enumerator.PortDetails{IsUSB: true, VID: "0403", PID: "0ED5"},
			want: false,
		},
		{
			name: "wrong product",
			d:    enumerator.PortDetails{IsUSB: true, VID: "16D0", PID: "6001"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSensorPort(&tt.d))
		})
	}
}

package behavior

import (
	"context"
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	if got := clamp(5.0, 0.0, 10.0); got != 5.0 {
		t.Errorf("clamp(5,0,10) = %v, want 5", got)
	}
	if got := clamp(-5.0, 0.0, 10.0); got != 0.0 {
		t.Errorf("clamp(-5,0,10) = %v, want 0", got)
	}
	if got := clamp(15.0, 0.0, 10.0); got != 10.0 {
		t.Errorf("clamp(15,0,10) = %v, want 10", got)
	}
}

func TestNewVarianceModel(t *testing.T) {
	m := NewVarianceModel(Consumer, 100.0, 25.0)
	if m.DeviceClass != Consumer {
		t.Errorf("DeviceClass = %v, want Consumer", m.DeviceClass)
	}
	if m.EffectiveClockPeriodNs <= 10.0 {
		t.Errorf("EffectiveClockPeriodNs = %v, want > base period of 10ns", m.EffectiveClockPeriodNs)
	}
}

func TestNewVarianceModelClampsTemperature(t *testing.T) {
	m := NewVarianceModel(Consumer, 100.0, 500.0)
	if m.OperatingTempC != 85.0 {
		t.Errorf("OperatingTempC = %v, want clamped to 85", m.OperatingTempC)
	}
}

func TestSamplerNoReaderReturnsSyntheticProfile(t *testing.T) {
	s := NewSampler(nil, time.Millisecond)
	p := s.Sample(context.Background(), fakeBDF{}, 0, 0, Consumer)
	if len(p.RegisterAccesses) != 0 {
		t.Errorf("expected no real register accesses with no reader, got %+v", p)
	}
	if p.InterruptRateHz == nil || *p.InterruptRateHz == 0 {
		t.Errorf("expected a non-zero synthetic interrupt rate, got %+v", p)
	}
	if len(p.DMABurstSizeDistribution) == 0 {
		t.Error("expected a non-empty synthetic DMA burst size distribution")
	}
}

func TestSamplerRespectsCancellation(t *testing.T) {
	s := NewSampler(nil, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := s.Sample(ctx, fakeBDF{}, 0, time.Second, Consumer)
	if p == nil {
		t.Fatal("expected non-nil profile")
	}
}

func TestDeviceClassForIdentity(t *testing.T) {
	tests := []struct {
		classCode uint32
		want      DeviceClass
	}{
		{0x010802, Enterprise}, // mass storage
		{0x020000, Enterprise}, // network
		{0x0C0330, Industrial}, // serial bus (USB)
		{0x110000, Automotive}, // signal processing
		{0x030000, Consumer},   // display
	}
	for _, tt := range tests {
		if got := DeviceClassForIdentity(tt.classCode); got != tt.want {
			t.Errorf("DeviceClassForIdentity(0x%06x) = %v, want %v", tt.classCode, got, tt.want)
		}
	}
}

type fakeBDF struct{}

func (fakeBDF) String() string { return "0000:00:00.0" }

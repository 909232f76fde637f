package audio

import (
	"encoding/binary"
	"testing"
)

func TestApplyVolumeScalesSamples(t *testing.T) {
	o := &OtoOutput{volume: 0.5}

	buf := make([]byte, 4)
	pos, neg := int16(4096), int16(-4096)
	binary.LittleEndian.PutUint16(buf[0:], uint16(pos))
	binary.LittleEndian.PutUint16(buf[2:], uint16(neg))

	o.applyVolume(buf)

	if got := int16(binary.LittleEndian.Uint16(buf[0:])); got != 2048 {
		t.Errorf("Expected 2048 at half volume, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[2:])); got != -2048 {
		t.Errorf("Expected -2048 at half volume, got %d", got)
	}
}

func TestApplyVolumeSilenceAtZero(t *testing.T) {
	o := &OtoOutput{volume: 0}

	buf := make([]byte, 4)
	pos, neg := int16(32767), int16(-32768)
	binary.LittleEndian.PutUint16(buf[0:], uint16(pos))
	binary.LittleEndian.PutUint16(buf[2:], uint16(neg))

	o.applyVolume(buf)

	for i, b := range buf {
		if b != 0 {
			t.Errorf("Expected silence at byte %d, got %02X", i, b)
		}
	}
}

func TestSetVolumeClamp(t *testing.T) {
	o := &OtoOutput{volume: 1.0}

	o.SetVolume(-0.5)
	if o.GetVolume() != 0 {
		t.Errorf("Expected volume 0 for negative input, got %f", o.GetVolume())
	}

	o.SetVolume(1.5)
	if o.GetVolume() != 1 {
		t.Errorf("Expected volume 1 for >1 input, got %f", o.GetVolume())
	}

	o.SetVolume(0.75)
	if o.GetVolume() != 0.75 {
		t.Errorf("Expected volume 0.75, got %f", o.GetVolume())
	}
}

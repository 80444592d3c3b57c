package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	if IsValid("grad") {
		t.Error("IsValid(grad) = true, want false")
	}
}

func TestDegRadRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, -30, 180, 360} {
		got := RadToDeg(DegToRad(deg))
		if math.Abs(got-deg) > 1e-12 {
			t.Errorf("round trip %v -> %v", deg, got)
		}
	}
}

func TestConvertAngle(t *testing.T) {
	if got := ConvertAngle(180, Radians); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("ConvertAngle(180, rad) = %v, want pi", got)
	}
	if got := ConvertAngle(90, Degrees); got != 90 {
		t.Errorf("ConvertAngle(90, deg) = %v, want 90", got)
	}
	// Unknown units pass the value through unchanged.
	if got := ConvertAngle(90, "grad"); got != 90 {
		t.Errorf("ConvertAngle(90, grad) = %v, want 90", got)
	}
}

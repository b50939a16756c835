package game

import "testing"

func TestReflectTwiceRestoresVector(t *testing.T) {
	cases := []struct {
		v, n Vec2
	}{
		{Vec2{1, -1}, Up},
		{Vec2{3, 2}, Vec2{1, 0}},
		{Vec2{-0.5, 4}, Vec2{0.6, 0.8}},
		{Vec2{0, -7}, Vec2{-0.8, 0.6}},
	}
	for _, c := range cases {
		got := Reflect(Reflect(c.v, c.n), c.n)
		if !approxVec(got, c.v) {
			t.Errorf("Reflect twice of %v about %v = %v", c.v, c.n, got)
		}
	}
}

func TestBounceVelocityReflectsAndScales(t *testing.T) {
	got := BounceVelocity(Vec2{-2, 0}, Vec2{1, 0}, Zero, Zero, Vec2{4, 4})
	if !approxVec(got, Vec2{4, 0}) {
		t.Fatalf("wall bounce = %v, want (4,0)", got)
	}

	// 非对称恢复系数：x*2, y*1
	got = BounceVelocity(Vec2{3, -4}, Up, Zero, Zero, Vec2{2, 1})
	if !approxVec(got, Vec2{1.2, 0.8}) {
		t.Fatalf("floor bounce = %v, want (1.2,0.8)", got)
	}
}

func TestBounceTwiceIsParallelToOriginal(t *testing.T) {
	v := Vec2{2, -3}
	n := Vec2{0.6, 0.8}
	unit := Vec2{1, 1}
	once := BounceVelocity(v, n, Zero, Zero, unit)
	twice := BounceVelocity(once, n, Zero, Zero, unit)
	want := v.Normalized()
	if !approxVec(twice.Normalized(), want) {
		t.Fatalf("double bounce direction %v, want %v", twice.Normalized(), want)
	}
}

func TestBounceVelocityRestingFallback(t *testing.T) {
	// 静止时以 self->other 作为来向，反射后远离对方
	got := BounceVelocity(Zero, Vec2{-1, 0}, Vec2{0, 0}, Vec2{1, 0}, Vec2{4, 4})
	if !approxVec(got, Vec2{-4, 0}) {
		t.Fatalf("resting bounce = %v, want (-4,0)", got)
	}

	got = BounceVelocity(Zero, Up, Vec2{2, 2}, Vec2{2, 2}, Vec2{4, 4})
	if !approxVec(got, Vec2{0, 4}) {
		t.Fatalf("coincident bounce = %v, want (0,4)", got)
	}
}

func TestClassifyPlayers(t *testing.T) {
	cases := []struct {
		name        string
		self, other Vec2
		want        Outcome
	}{
		{"above", Vec2{0, 1}, Vec2{0, 0}, OutcomeKill},
		{"below", Vec2{0, 0}, Vec2{0.3, 1}, OutcomeKilled},
		{"same height", Vec2{-0.5, 0.02}, Vec2{0.5, 0}, OutcomeBounce},
		{"just below epsilon", Vec2{0, 0.049}, Vec2{0, 0}, OutcomeBounce},
		{"at epsilon", Vec2{0, 0.05}, Vec2{0, 0}, OutcomeKill},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyPlayers(c.self, c.other, SameHeightEpsilon); got != c.want {
				t.Fatalf("got %v want %v", got, c.want)
			}
		})
	}
}

func TestClassifyStatic(t *testing.T) {
	cases := []struct {
		normal Vec2
		want   Outcome
	}{
		{Up, OutcomeLand},
		{Vec2{0.0999, 0.995}, OutcomeLand},
		{Vec2{1, 0}, OutcomeBounce},
		{Vec2{0, -1}, OutcomeBounce},
		{Vec2{0.6, 0.8}, OutcomeBounce},
	}
	for _, c := range cases {
		if got := ClassifyStatic(c.normal, LandNormalMinY); got != c.want {
			t.Errorf("ClassifyStatic(%v) = %v, want %v", c.normal, got, c.want)
		}
	}
}

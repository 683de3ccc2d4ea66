package signal

import "testing"

func TestRaiseIsIdempotent(t *testing.T) {
	s := NewState()
	s.Raise(5)
	s.Raise(5) // raising an already-pending signal must not queue it twice

	outcome, act := s.Deliver(0)
	if outcome != OutcomeNone {
		t.Fatalf("signal 5 has no handler installed, expected OutcomeNone, got %v (%v)", outcome, act)
	}

	s.SetAction(5, Action{Handler: 0x1000})
	s.Raise(5)
	s.Raise(5)
	outcome, _ = s.Deliver(0)
	if outcome != OutcomeUserHandler {
		t.Fatalf("Deliver = %v, want OutcomeUserHandler", outcome)
	}
	// The second Raise must not have queued a duplicate delivery.
	outcome, _ = s.Deliver(0)
	if outcome != OutcomeNone {
		t.Fatalf("second Deliver = %v, want OutcomeNone (idempotent raise)", outcome)
	}
}

func TestMaskBlocksDelivery(t *testing.T) {
	s := NewState()
	s.SetAction(5, Action{Handler: 0x1000})
	s.SetMask(bit(5))
	s.Raise(5)

	outcome, _ := s.Deliver(0)
	if outcome != OutcomeNone {
		t.Fatalf("masked signal delivered: outcome = %v", outcome)
	}

	s.SetMask(0)
	outcome, _ = s.Deliver(0)
	if outcome != OutcomeUserHandler {
		t.Fatalf("unmasked signal not delivered: outcome = %v", outcome)
	}
}

func TestSigkillAndSigstopCannotBeCaught(t *testing.T) {
	s := NewState()
	if _, err := s.SetAction(SIGKILL, Action{Handler: 1}); err == 0 {
		t.Fatal("SetAction on SIGKILL should fail")
	}
	if _, err := s.SetAction(SIGSTOP, Action{Handler: 1}); err == 0 {
		t.Fatal("SetAction on SIGSTOP should fail")
	}
}

func TestStopThenContFreezesAndResumes(t *testing.T) {
	s := NewState()
	s.Raise(SIGSTOP)
	outcome, _ := s.Deliver(0)
	if outcome != OutcomeFrozen || !s.Frozen {
		t.Fatalf("SIGSTOP did not freeze: outcome=%v frozen=%v", outcome, s.Frozen)
	}

	s.Raise(SIGCONT)
	outcome, _ = s.Deliver(0)
	if outcome != OutcomeNone || s.Frozen {
		t.Fatalf("SIGCONT did not unfreeze: outcome=%v frozen=%v", outcome, s.Frozen)
	}
}

func TestUnhandledSigsegvKills(t *testing.T) {
	s := NewState()
	s.Raise(SIGSEGV)
	outcome, _ := s.Deliver(0)
	if outcome != OutcomeKilled || !s.Killed {
		t.Fatalf("unhandled SIGSEGV should kill: outcome=%v killed=%v", outcome, s.Killed)
	}
}

func TestEndHandlingRestoresMask(t *testing.T) {
	s := NewState()
	s.SetAction(5, Action{Handler: 0x1000, Mask: bit(6)})
	s.SetMask(0)
	s.Raise(5)
	s.Deliver(0)

	if s.Handling() != 5 {
		t.Fatalf("Handling() = %d, want 5", s.Handling())
	}
	if s.Mask() != bit(6) {
		t.Fatalf("mask during handling = %#x, want handler's installed mask", s.Mask())
	}

	s.EndHandling(0)
	if s.Handling() >= 0 {
		t.Fatalf("Handling() after EndHandling = %d, want <0", s.Handling())
	}
	if s.Mask() != 0 {
		t.Fatalf("mask after EndHandling = %#x, want restored value 0", s.Mask())
	}
}

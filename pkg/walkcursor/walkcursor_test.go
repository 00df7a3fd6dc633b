package walkcursor

import "testing"

func TestRefreshNothingToDo(t *testing.T) {
	p := Refresh(Cursors{UpperBlock: 100, LastBlockSaved: 100}, 100)
	if !p.Done {
		t.Fatalf("expected done, got %+v", p)
	}
}

func TestRefreshResumesMidStreamCrash(t *testing.T) {
	persisted := Cursors{UpperBlock: 100, LastProcessedBlock: 50, LastBlockSaved: 10}
	p := Refresh(persisted, 100)
	if !p.Resuming {
		t.Fatalf("expected resuming, got %+v", p)
	}
	if p.StartBlock != 50 {
		t.Fatalf("expected resume from last_processed_block=50, got %d", p.StartBlock)
	}
}

func TestRefreshNewEpoch(t *testing.T) {
	persisted := Cursors{UpperBlock: 100, LastProcessedBlock: 0, LastBlockSaved: 100}
	p := Refresh(persisted, 150)
	if p.Done || p.Resuming {
		t.Fatalf("expected a fresh epoch, got %+v", p)
	}
	if p.Cursors.UpperBlock != 150 || p.Cursors.LastProcessedBlock != 0 || p.Cursors.LastBlockSaved != 100 {
		t.Fatalf("unexpected cursors: %+v", p.Cursors)
	}
	if p.StartBlock != 150 {
		t.Fatalf("expected start block 150, got %d", p.StartBlock)
	}
}

func TestAdvanceContinues(t *testing.T) {
	cur := Cursors{UpperBlock: 100, LastProcessedBlock: 0, LastBlockSaved: 10}
	next, done := Advance(cur, 100, 80)
	if done {
		t.Fatalf("expected walk to continue")
	}
	if next.LastProcessedBlock != 100 {
		t.Fatalf("unexpected last_processed_block: %+v", next)
	}
}

func TestAdvanceFinalizes(t *testing.T) {
	cur := Cursors{UpperBlock: 100, LastProcessedBlock: 0, LastBlockSaved: 10}
	next, done := Advance(cur, 20, 10)
	if !done {
		t.Fatalf("expected walk to finalize when prevBlock reaches last_block_saved")
	}
	if next.LastProcessedBlock != 0 || next.LastBlockSaved != 100 {
		t.Fatalf("unexpected finalize cursors: %+v", next)
	}
}

func TestValidateRejectsBrokenInvariant(t *testing.T) {
	c := Cursors{UpperBlock: 10, LastProcessedBlock: 20, LastBlockSaved: 5}
	if err := c.Validate(); err == nil {
		t.Fatal("expected invariant violation error")
	}
}

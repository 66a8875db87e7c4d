package queue

import "testing"

func TestPushPopUpToFIFOOrder(t *testing.T) {
	q := New()
	q.Push(NewOp(KindSet, []byte("a"), nil, nil))
	q.Push(NewOp(KindSet, []byte("b"), nil, nil))
	q.Push(NewOp(KindSet, []byte("c"), nil, nil))

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	ops := q.PopUpTo(2)
	if len(ops) != 2 || string(ops[0].Key) != "a" || string(ops[1].Key) != "b" {
		t.Fatalf("unexpected pop order: %v", ops)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}

	rest := q.PopUpTo(10)
	if len(rest) != 1 || string(rest[0].Key) != "c" {
		t.Fatalf("unexpected remainder: %v", rest)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}

func TestPopUpToEmptyQueueReturnsNil(t *testing.T) {
	q := New()
	if ops := q.PopUpTo(5); ops != nil {
		t.Fatalf("expected nil, got %v", ops)
	}
}

func TestPopUpToZeroOrNegativeReturnsNil(t *testing.T) {
	q := New()
	q.Push(NewOp(KindSet, []byte("a"), nil, nil))
	if ops := q.PopUpTo(0); ops != nil {
		t.Fatalf("expected nil for n=0, got %v", ops)
	}
	if ops := q.PopUpTo(-1); ops != nil {
		t.Fatalf("expected nil for n=-1, got %v", ops)
	}
}

func TestOpCompleteInvokesDone(t *testing.T) {
	var gotVal []byte
	var gotErr error
	called := false
	op := NewOp(KindGet, []byte("k"), nil, func(v []byte, err error) {
		called = true
		gotVal = v
		gotErr = err
	})
	op.Complete([]byte("v"), nil)
	if !called || string(gotVal) != "v" || gotErr != nil {
		t.Fatalf("Complete did not invoke done correctly: called=%v val=%q err=%v", called, gotVal, gotErr)
	}
}

func TestCompleteWithNilDoneDoesNotPanic(t *testing.T) {
	op := NewOp(KindDel, []byte("k"), nil, nil)
	op.Complete(nil, nil)
}

package embed

import "testing"

func TestFileLockLockUnlock(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir)
	if err := l.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	// Unlocking again is a no-op, not an error.
	if err := l.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
}

func TestFileLockSecondLockerBlocksUntilReleased(t *testing.T) {
	dir := t.TempDir()
	a := NewFileLock(dir)
	if err := a.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	b := NewFileLock(dir)
	done := make(chan struct{})
	go func() {
		b.Lock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first still held")
	default:
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	<-done
	b.Unlock()
}

package uart

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestDetectSignalChanges(t *testing.T) {
	const (
		cts = unix.TIOCM_CTS
		dsr = unix.TIOCM_DSR
		ri  = unix.TIOCM_RI
		car = unix.TIOCM_CAR
	)
	tests := []struct {
		before, after int
		want          SignalMask
	}{
		{cts | dsr, cts | dsr, 0},
		{0, cts, SignalCTS},
		{cts, 0, SignalCTS},
		{cts, dsr, SignalCTS | SignalDSR},
		{0, ri | car, SignalRI | SignalDCD},
		// Output lines never count as a change.
		{0, unix.TIOCM_DTR | unix.TIOCM_RTS, 0},
		{car | unix.TIOCM_DTR, car, 0},
	}
	for _, tt := range tests {
		if got := detectSignalChanges(tt.before, tt.after); got != tt.want {
			t.Errorf("detectSignalChanges(%#x, %#x) = %v, want %v", tt.before, tt.after, got, tt.want)
		}
	}
}

func TestSignalsFromStatus(t *testing.T) {
	got := signalsFromStatus(unix.TIOCM_DTR | unix.TIOCM_DSR | unix.TIOCM_CAR | unix.TIOCM_RI)
	want := ModemSignals{DTR: true, DSR: true, DCD: true, RI: true}
	if got != want {
		t.Errorf("signalsFromStatus() = %+v, want %+v", got, want)
	}

	if active := got.ActiveInputs(); len(active) != 3 || active[0] != "DSR" || active[1] != "DCD" || active[2] != "RI" {
		t.Errorf("ActiveInputs() = %v, want [DSR DCD RI]", active)
	}
}

func TestWithOutputLines(t *testing.T) {
	const other = unix.TIOCM_LE | unix.TIOCM_ST

	tests := []struct {
		name     string
		status   int
		dtr, rts bool
		want     int
	}{
		{"set both", other, true, true, other | unix.TIOCM_DTR | unix.TIOCM_RTS},
		{"clear both", other | unix.TIOCM_DTR | unix.TIOCM_RTS, false, false, other},
		{"dtr only", unix.TIOCM_RTS, true, false, unix.TIOCM_DTR},
		{"rts only", unix.TIOCM_DTR, false, true, unix.TIOCM_RTS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withOutputLines(tt.status, tt.dtr, tt.rts); got != tt.want {
				t.Errorf("withOutputLines(%#x, %v, %v) = %#x, want %#x", tt.status, tt.dtr, tt.rts, got, tt.want)
			}
		})
	}
}

func TestSignalMaskString(t *testing.T) {
	tests := []struct {
		mask SignalMask
		want string
	}{
		{0, "none"},
		{SignalCTS, "CTS"},
		{SignalDSR | SignalDCD, "DSR|DCD"},
		{SignalAll, "CTS|DSR|RI|DCD"},
	}

	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("SignalMask(%d).String() = %q, want %q", int(tt.mask), got, tt.want)
		}
	}
}

func TestParseSignalMask(t *testing.T) {
	tests := []struct {
		input   string
		want    SignalMask
		wantErr bool
	}{
		{"cts", SignalCTS, false},
		{"CTS,dsr", SignalCTS | SignalDSR, false},
		{"dcd, ri", SignalDCD | SignalRI, false},
		{"all", SignalAll, false},
		{"", 0, true},
		{"dtr", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSignalMask(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSignalMask(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSignalMask) {
				t.Errorf("error = %v, want ErrInvalidSignalMask", err)
			}
			if got != tt.want {
				t.Errorf("ParseSignalMask(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// fakeLines serves queued samples; the last one repeats.
type fakeLines struct {
	mu         sync.Mutex
	statuses   []int
	countQueue []lineCounts
	statusErr  error
	countErr   error
}

func (f *fakeLines) status() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeLines) counts() (lineCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return lineCounts{}, f.countErr
	}
	if len(f.countQueue) == 0 {
		return lineCounts{}, fmt.Errorf("%w: %w", ErrModemWaitFailed, unix.ENOTTY)
	}
	c := f.countQueue[0]
	if len(f.countQueue) > 1 {
		f.countQueue = f.countQueue[1:]
	}
	return c, nil
}

func TestSignalWatcherWait(t *testing.T) {
	const (
		dtr = unix.TIOCM_DTR
		dsr = unix.TIOCM_DSR
		cts = unix.TIOCM_CTS
	)

	tests := []struct {
		name        string
		lines       *fakeLines
		mask        SignalMask
		wantChanged SignalMask
		wantSignals ModemSignals
	}{
		{
			name:        "level change outside mask is ignored",
			lines:       &fakeLines{statuses: []int{dtr, dtr | cts, dtr | cts | dsr}},
			mask:        SignalDSR | SignalDCD,
			wantChanged: SignalDSR,
			wantSignals: ModemSignals{DTR: true, CTS: true, DSR: true},
		},
		{
			name: "pulse seen only by counters",
			lines: &fakeLines{
				statuses:   []int{0},
				countQueue: []lineCounts{{}, {}, {rng: 2}},
			},
			mask:        SignalRI,
			wantChanged: SignalRI,
		},
		{
			name: "counter and level changes combine",
			lines: &fakeLines{
				statuses:   []int{0, cts},
				countQueue: []lineCounts{{}, {cts: 1, dcd: 2}},
			},
			mask:        SignalAll,
			wantChanged: SignalCTS | SignalDCD,
			wantSignals: ModemSignals{CTS: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := newSignalWatcher(tt.lines, tt.mask)
			if err != nil {
				t.Fatalf("newSignalWatcher() error = %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			signals, changed, err := w.Wait(ctx)
			if err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if signals != tt.wantSignals {
				t.Errorf("signals = %+v, want %+v", signals, tt.wantSignals)
			}
		})
	}
}

func TestSignalWatcherKeepsChangesBetweenWaits(t *testing.T) {
	// CTS rises and falls again while nobody is waiting; only the
	// counters still show it.
	lines := &fakeLines{
		statuses:   []int{0, unix.TIOCM_DSR, 0},
		countQueue: []lineCounts{{}, {dsr: 1}, {dsr: 1, cts: 2}},
	}

	w, err := newSignalWatcher(lines, SignalAll)
	if err != nil {
		t.Fatalf("newSignalWatcher() error = %v", err)
	}

	tests := []struct {
		name string
		want SignalMask
	}{
		{"first wait", SignalDSR},
		{"second wait", SignalCTS | SignalDSR},
	}
	for _, tt := range tests {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, changed, err := w.Wait(ctx)
		cancel()
		if err != nil {
			t.Fatalf("%s: Wait() error = %v", tt.name, err)
		}
		if changed != tt.want {
			t.Errorf("%s: changed = %v, want %v", tt.name, changed, tt.want)
		}
	}
}

func TestSignalWatcherErrors(t *testing.T) {
	t.Run("status unsupported", func(t *testing.T) {
		lines := &fakeLines{statusErr: fmt.Errorf("%w: %w", ErrModemStatusReadFailed, unix.ENOTTY)}
		_, err := newSignalWatcher(lines, SignalAll)
		if !errors.Is(err, ErrModemStatusReadFailed) || !errors.Is(err, unix.ENOTTY) {
			t.Errorf("error = %v, want ErrModemStatusReadFailed wrapping ENOTTY", err)
		}
	})

	t.Run("counters fail after snapshot", func(t *testing.T) {
		lines := &fakeLines{statuses: []int{0}, countQueue: []lineCounts{{}}}
		w, err := newSignalWatcher(lines, SignalAll)
		if err != nil {
			t.Fatalf("newSignalWatcher() error = %v", err)
		}
		lines.countErr = fmt.Errorf("%w: %w", ErrModemWaitFailed, unix.EIO)

		_, _, err = w.Wait(context.Background())
		if !errors.Is(err, ErrModemWaitFailed) || !errors.Is(err, unix.EIO) {
			t.Errorf("error = %v, want ErrModemWaitFailed wrapping EIO", err)
		}
	})

	t.Run("invalid mask", func(t *testing.T) {
		for _, mask := range []SignalMask{0, SignalMask(1 << 6)} {
			if _, err := newSignalWatcher(&fakeLines{statuses: []int{0}}, mask); !errors.Is(err, ErrInvalidSignalMask) {
				t.Errorf("newSignalWatcher(%d) error = %v, want ErrInvalidSignalMask", int(mask), err)
			}
		}
	})
}

func TestSignalWatcherCancellationLeavesNoGoroutines(t *testing.T) {
	lines := &fakeLines{statuses: []int{0}, countQueue: []lineCounts{{}}}
	before := runtime.NumGoroutine()

	for i := 0; i < 200; i++ {
		w, err := newSignalWatcher(lines, SignalAll)
		if err != nil {
			t.Fatalf("newSignalWatcher() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		start := time.Now()
		_, _, err = w.Wait(ctx)
		cancel()

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Wait() error = %v, want context.DeadlineExceeded", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Fatalf("cancellation took %v", elapsed)
		}
	}

	if after := runtime.NumGoroutine(); after > before+5 {
		t.Errorf("goroutines grew from %d to %d across cancelled waits", before, after)
	}
}

func TestSignalWatcherOnClosedPort(t *testing.T) {
	p := &port{closed: true}
	if _, err := p.WatchSignals(SignalAll); !errors.Is(err, ErrPortClosed) {
		t.Errorf("WatchSignals() error = %v, want ErrPortClosed", err)
	}

	// A port closed under an open watcher ends the next sample.
	p = &port{}
	w := &SignalWatcher{lines: portLines{p}, mask: SignalAll}
	p.closed = true
	if _, _, err := w.Wait(context.Background()); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Wait() after close error = %v, want ErrPortClosed", err)
	}
}

func TestWaitForSignalChangeInvalidMask(t *testing.T) {
	// The mask is checked before the port state.
	p := &port{closed: true}

	if _, _, err := p.WaitForSignalChange(0, time.Second); !errors.Is(err, ErrInvalidSignalMask) {
		t.Errorf("WaitForSignalChange(0) error = %v", err)
	}
	if _, _, err := p.WaitForSignalChangeContext(context.Background(), SignalMask(1<<7)); !errors.Is(err, ErrInvalidSignalMask) {
		t.Errorf("WaitForSignalChangeContext(1<<7) error = %v", err)
	}
}

func TestModemOperationsOnClosedPort(t *testing.T) {
	p := &port{closed: true}
	ctx := context.Background()

	ops := map[string]func() error{
		"GetLines": func() error { _, err := p.GetLines(); return err },
		"SetLines": func() error { return p.SetLines(true, true) },
		"SetRTS":   func() error { return p.SetRTS(true) },
		"SetDTR":   func() error { return p.SetDTR(false) },
		"WaitForChange": func() error {
			_, _, err := p.WaitForChange(ctx)
			return err
		},
		"WaitForSignalChange": func() error {
			_, _, err := p.WaitForSignalChange(SignalCTS, time.Second)
			return err
		},
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrPortClosed) {
			t.Errorf("%s() on closed port error = %v, want ErrPortClosed", name, err)
		}
	}
}

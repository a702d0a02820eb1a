package smartcoex

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBT struct {
	status Status
	err    error

	calls   int
	ocf     uint16
	payload []byte
}

func (f *fakeBT) SendVendorSpecificCommand(ocf uint16, payload []byte, done chan<- CommandComplete) (Status, error) {
	f.calls++
	f.ocf = ocf
	f.payload = payload
	if f.err == nil && f.status != StatusBusy {
		done <- CommandComplete{Opcode: 0xFC00 | ocf}
	}
	return f.status, f.err
}

type fakeWifi struct {
	resolveErr error
	setErr     error

	resolved int
	set      []CoexConfig
}

func (f *fakeWifi) Resolve(i WifiInterface) (WifiHandle, error) {
	f.resolved++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f, nil
}

func (f *fakeWifi) SetCoexConfig(c CoexConfig) error {
	f.set = append(f.set, c)
	return f.setErr
}

type codeErr int

func (c codeErr) Error() string { return "stack error" }
func (c codeErr) Code() int     { return int(c) }

func newTestCoex(t *testing.T, bt *fakeBT, w *fakeWifi) *Coex {
	c, err := New(bt, w)
	require.NoError(t, err)
	return c
}

func highConfig() BtConfig {
	return BtConfig{Priority: PriorityHigh, ScanInterval: 100, ScanWindow: 50, Done: make(chan CommandComplete, 1)}
}

func TestConfigureHigh(t *testing.T) {
	for _, st := range []Status{StatusSuccess, StatusPending} {
		bt := &fakeBT{status: st}
		w := &fakeWifi{}
		c := newTestCoex(t, bt, w)

		a, err := c.Configure(WifiConfig{Interface: InterfaceSTA}, highConfig())
		require.NoError(t, err)

		assert.Equal(t, ScanParams{MaxScanWindow: 48, DutyCycle: 90, SmallIntervalGrant: 1, ScanInterval: 100, ScanWindow: 50, Priority: PriorityHigh}, a.Scan)
		assert.Equal(t, 1, bt.calls)
		assert.Equal(t, OCFLEScanCoex, bt.ocf)
		assert.Equal(t, []byte{48, 0, 90, 1}, bt.payload)

		require.Len(t, w.set, 1)
		got := w.set[0]
		assert.EqualValues(t, 90, got.DutyCycle)
		assert.EqualValues(t, 48, got.MaxWindow)
		assert.EqualValues(t, 1, got.IntervalGrant)
		assert.EqualValues(t, 2, got.Priority)
		assert.Equal(t, a.Coex, got)
	}
}

func TestConfigureInvalidNoDispatch(t *testing.T) {
	tests := []struct {
		name string
		w    WifiConfig
		b    BtConfig
	}{
		{"interface", WifiConfig{Interface: 3}, highConfig()},
		{"done", WifiConfig{}, BtConfig{Priority: PriorityHigh, ScanInterval: 100, ScanWindow: 50}},
		{"interval", WifiConfig{}, BtConfig{Priority: PriorityLow, ScanInterval: 2, ScanWindow: 2, Done: make(chan CommandComplete)}},
		{"window", WifiConfig{}, BtConfig{Priority: PriorityLow, ScanInterval: 100, ScanWindow: 200, Done: make(chan CommandComplete)}},
		{"priority", WifiConfig{}, BtConfig{Priority: 3, ScanInterval: 100, ScanWindow: 50, Done: make(chan CommandComplete)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := &fakeBT{status: StatusPending}
			w := &fakeWifi{}
			c := newTestCoex(t, bt, w)

			a, err := c.Configure(tt.w, tt.b)
			assert.Equal(t, ErrInvalidArgument, errors.Cause(err))
			assert.Equal(t, Applied{}, a)
			assert.Zero(t, bt.calls)
			assert.Zero(t, w.resolved)
		})
	}
}

func TestConfigureBusy(t *testing.T) {
	bt := &fakeBT{status: StatusBusy}
	w := &fakeWifi{}
	c := newTestCoex(t, bt, w)

	b := highConfig()
	done := make(chan CommandComplete, 1)
	b.Done = done
	_, err := c.Configure(WifiConfig{}, b)
	assert.Equal(t, ErrBusy, err)
	assert.Zero(t, w.resolved)
	assert.Empty(t, done)
}

func TestConfigureFatal(t *testing.T) {
	bt := &fakeBT{err: errors.Wrap(codeErr(0x0C), "send")}
	w := &fakeWifi{}
	c := newTestCoex(t, bt, w)

	_, err := c.Configure(WifiConfig{}, highConfig())
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0x0C, fe.Code)
	assert.Zero(t, w.resolved)
}

func TestConfigureWifiPassthrough(t *testing.T) {
	resolveErr := errors.New("no such interface")
	w := &fakeWifi{resolveErr: resolveErr}
	c := newTestCoex(t, &fakeBT{status: StatusPending}, w)
	_, err := c.Configure(WifiConfig{}, highConfig())
	assert.Equal(t, resolveErr, err)
	assert.Empty(t, w.set)

	setErr := errors.New("driver error 0x1d")
	w = &fakeWifi{setErr: setErr}
	c = newTestCoex(t, &fakeBT{status: StatusPending}, w)
	_, err = c.Configure(WifiConfig{}, highConfig())
	assert.Equal(t, setErr, err)
	assert.Len(t, w.set, 1)
}

func TestConfigureIdempotent(t *testing.T) {
	bt := &fakeBT{status: StatusSuccess}
	w := &fakeWifi{}
	c := newTestCoex(t, bt, w)

	b := BtConfig{Priority: PriorityMedium, ScanInterval: 0x40, ScanWindow: 0x20, Done: make(chan CommandComplete, 2)}
	a1, err := c.Configure(WifiConfig{}, b)
	require.NoError(t, err)
	p1 := bt.payload
	a2, err := c.Configure(WifiConfig{}, b)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, p1, bt.payload)
	require.Len(t, w.set, 2)
	assert.Equal(t, w.set[0], w.set[1])
}

func TestOptions(t *testing.T) {
	bt := &fakeBT{status: StatusPending}
	c, err := New(bt, &fakeWifi{}, OptVendorOCF(0x0123), OptLogger(GetLogger()))
	require.NoError(t, err)
	_, err = c.Configure(WifiConfig{}, highConfig())
	require.NoError(t, err)
	assert.EqualValues(t, 0x0123, bt.ocf)

	_, err = New(bt, &fakeWifi{}, OptVendorOCF(0x0400))
	assert.Error(t, err)

	_, err = New(nil, &fakeWifi{})
	assert.Error(t, err)
}

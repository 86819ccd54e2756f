// internal/sampler/sampler_test.go
package sampler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	inputs  []uint16
	holding []uint16
	failFC  uint8
	closed  bool
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	if f.failFC == 3 {
		return nil, errors.New("fail fc3")
	}
	out := make([]uint16, qty)
	copy(out, f.holding)
	return out, nil
}

func (f *fakeClient) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	if f.failFC == 4 {
		return nil, errors.New("fail fc4")
	}
	out := make([]uint16, qty)
	copy(out, f.inputs)
	return out, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestSampleOnce_Success(t *testing.T) {
	c := &fakeClient{inputs: []uint16{3300, 1250, 0xFF9C}} // -10.0 degC
	s, err := New(Config{Address: 100}, c, nil)
	require.NoError(t, err)

	got := s.SampleOnce()
	require.NoError(t, got.Err)
	assert.Equal(t, int32(3300), got.VoltageMilli)
	assert.Equal(t, int32(1250), got.PowerMilli)
	assert.Equal(t, int32(-100), got.TempDeci)
	assert.False(t, got.At.IsZero())
}

func TestSampleOnce_FailureDropsClient(t *testing.T) {
	bad := &fakeClient{failFC: 4}
	good := &fakeClient{inputs: []uint16{1, 2, 3}}
	dials := 0

	s, err := New(Config{}, bad, func() (Client, error) {
		dials++
		return good, nil
	})
	require.NoError(t, err)

	assert.Error(t, s.SampleOnce().Err)
	assert.True(t, bad.closed)

	got := s.SampleOnce()
	require.NoError(t, got.Err)
	assert.Equal(t, 1, dials)
	assert.Equal(t, int32(3), got.TempDeci)
}

func TestSampleOnce_ConnectFailure(t *testing.T) {
	s, err := New(Config{}, nil, func() (Client, error) {
		return nil, errors.New("refused")
	})
	require.NoError(t, err)
	assert.ErrorContains(t, s.SampleOnce().Err, "refused")
}

func TestNew_RequiresClientOrFactory(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestRegisterCheck(t *testing.T) {
	c := &fakeClient{holding: []uint16{0xA5A5, 0x0001}}
	s, err := New(Config{CheckAddress: 10, CheckQuantity: 2}, c, nil)
	require.NoError(t, err)
	require.True(t, s.HasRegisterCheck())

	require.NoError(t, s.CaptureReference())
	require.NoError(t, s.CheckRegisters())

	c.holding[1] = 0x0002
	err = s.CheckRegisters()
	assert.ErrorIs(t, err, ErrRegisterMismatch)
}

func TestRegisterCheck_FirstReadIsReference(t *testing.T) {
	c := &fakeClient{holding: []uint16{7}}
	s, err := New(Config{CheckQuantity: 1}, c, nil)
	require.NoError(t, err)

	require.NoError(t, s.CheckRegisters())
	c.holding[0] = 8
	assert.ErrorIs(t, s.CheckRegisters(), ErrRegisterMismatch)
}

func TestRegisterCheck_ReadFailureIsNotMismatch(t *testing.T) {
	c := &fakeClient{failFC: 3}
	s, err := New(Config{CheckQuantity: 1}, c, nil)
	require.NoError(t, err)

	err = s.CheckRegisters()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegisterMismatch)
}

func TestDecode_Short(t *testing.T) {
	assert.Error(t, Decode([]uint16{1}).Err)
}

package e32sim

import (
	"io"
	"testing"
	"time"

	"github.com/basilfx/go-e32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepModule(t *testing.T, opts ...Option) (*Module, *Port) {
	m := New(1, 2, 3, opts...)

	require.NoError(t, m.Output(1))
	require.NoError(t, m.Output(2))
	require.NoError(t, m.Write(1, true))
	require.NoError(t, m.Write(2, true))

	return m, m.Port()
}

func readAll(p *Port) []byte {
	var data []byte

	for p.Available() > 0 {
		b, _ := p.ReadByte()
		data = append(data, b)
	}

	return data
}

func TestModeFromLines(t *testing.T) {
	m := New(1, 2, 3)

	require.NoError(t, m.Output(1))
	require.NoError(t, m.Output(2))

	tests := []struct {
		m0, m1 bool
		mode   e32.Mode
	}{
		{false, false, e32.ModeNormal},
		{true, false, e32.ModeWakeUp},
		{false, true, e32.ModePowerSaving},
		{true, true, e32.ModeSleep},
	}

	for _, tt := range tests {
		require.NoError(t, m.Write(1, tt.m0))
		require.NoError(t, m.Write(2, tt.m1))

		assert.Equal(t, tt.mode, m.Mode())
	}
}

func TestWriteRequiresOutput(t *testing.T) {
	m := New(1, 2, 3)

	assert.Error(t, m.Write(1, true))
}

func TestCommands(t *testing.T) {
	m, p := sleepModule(t)

	_, err := p.Write([]byte{0xC1, 0xC1, 0xC1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC0, 0x00, 0x00, 0x1A, 0x17, 0x44}, readAll(p))

	_, err = p.Write([]byte{0xC3, 0xC3, 0xC3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC3, 0x32, 0x44, 0x14}, readAll(p))

	_, err = p.Write([]byte{0xC4, 0xC4, 0xC4})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Available())
	assert.Equal(t, 1, m.Resets())
}

func TestCommandSplitOverWrites(t *testing.T) {
	_, p := sleepModule(t)

	p.Write([]byte{0xC3})
	p.Write([]byte{0xC3, 0xC3})

	assert.Equal(t, []byte{0xC3, 0x32, 0x44, 0x14}, readAll(p))
}

func TestCommandResynchronizes(t *testing.T) {
	_, p := sleepModule(t)

	p.Write([]byte{0x00, 0xC3, 0xC1, 0xC1, 0xC1})

	assert.Equal(t, 6, p.Available())
}

func TestConfigWrite(t *testing.T) {
	m, p := sleepModule(t)

	p.Write([]byte{0xC2, 0xBE, 0xEF, 0x3D, 0x01, 0xC7})

	config := m.Config()

	assert.Equal(t, e32.HeadConfigSaveSoft, config.Head)
	assert.Equal(t, uint16(0xBEEF), config.Address())
	assert.Equal(t, byte(0x01), config.Channel)
	assert.True(t, config.Option.FixedMode)
}

func TestTruncatedResponses(t *testing.T) {
	_, p := sleepModule(t, WithTruncatedResponses(2))

	p.Write([]byte{0xC1, 0xC1, 0xC1})

	assert.Equal(t, []byte{0xC0, 0x00}, readAll(p))
}

func TestReadBackCorruption(t *testing.T) {
	_, p := sleepModule(t, WithReadBackCorruption(4))

	// Reads before a configuration write are not corrupted.
	p.Write([]byte{0xC1, 0xC1, 0xC1})
	assert.Equal(t, []byte{0xC0, 0x00, 0x00, 0x1A, 0x17, 0x44}, readAll(p))

	p.Write([]byte{0xC0, 0x00, 0x00, 0x1A, 0x17, 0x44})
	p.Write([]byte{0xC1, 0xC1, 0xC1})
	assert.Equal(t, []byte{0xC0, 0x00, 0x00, 0x1A, 0xE8, 0x44}, readAll(p))
}

func TestBusyPolls(t *testing.T) {
	m, _ := sleepModule(t, WithBusyPolls(2))

	for _, expected := range []bool{false, false, true, true} {
		ready, err := m.Read(3)

		require.NoError(t, err)
		assert.Equal(t, expected, ready)
	}
}

func TestCommandsIgnoredOutsideSleep(t *testing.T) {
	m := New(1, 2, 3)
	p := m.Port()

	p.Write([]byte{0xC1, 0xC1, 0xC1})

	assert.Equal(t, 0, p.Available())
	assert.Equal(t, [][]byte{{0xC1, 0xC1, 0xC1}}, m.Written())
}

func TestConnect(t *testing.T) {
	a := New(1, 2, 3)
	b := New(1, 2, 3)
	Connect(a, b)

	defer a.Close()
	defer b.Close()

	a.Port().Write([]byte("ping\n"))

	buf := make([]byte, 5)
	_, err := io.ReadFull(b.Port(), buf)

	require.NoError(t, err)
	assert.Equal(t, []byte("ping\n"), buf)
}

func TestReadAfterClose(t *testing.T) {
	m := New(1, 2, 3)
	p := m.Port()

	done := make(chan error)

	go func() {
		_, err := p.Read(make([]byte, 1))
		done <- err
	}()

	require.NoError(t, p.Close())

	select {
	case err := <-done:
		assert.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("read did not return")
	}

	_, err := p.Write([]byte{0x00})
	assert.Equal(t, io.ErrClosedPipe, err)
}

func TestInject(t *testing.T) {
	m := New(1, 2, 3)
	p := m.Port()

	m.Inject([]byte{0x01, 0x02})

	assert.Equal(t, 2, p.Available())
	assert.Equal(t, []byte{0x01, 0x02}, readAll(p))

	_, err := p.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestConfigReadAnswersWithSaveHead(t *testing.T) {
	m, p := sleepModule(t)

	p.Write([]byte{0xC2, 0x00, 0x01, 0x1A, 0x17, 0x44})
	p.Write([]byte{0xC1, 0xC1, 0xC1})

	assert.Equal(t, []byte{0xC0, 0x00, 0x01, 0x1A, 0x17, 0x44}, readAll(p))
	assert.Equal(t, e32.HeadConfigSaveSoft, m.Config().Head)
}

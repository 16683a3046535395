package e32

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncompleteResponseError(t *testing.T) {
	err := fmt.Errorf("read back config: %w", &IncompleteResponseError{
		Head:     HeadConfigRead,
		Expected: 6,
		Received: 2,
	})

	assert.True(t, errors.Is(err, ErrIncompleteResponse))
	assert.False(t, errors.Is(err, ErrVerificationMismatch))
	assert.Contains(t, err.Error(), "expected 6 bytes, got 2")

	var incomplete *IncompleteResponseError
	assert.True(t, errors.As(err, &incomplete))
	assert.Equal(t, HeadConfigRead, incomplete.Head)
}

func TestVerificationMismatchError(t *testing.T) {
	written := DefaultConfig()
	read := DefaultConfig()
	read.Channel = 0x18
	read.Option.FEC = false

	err := &VerificationMismatchError{Written: written, Read: read}

	assert.True(t, errors.Is(err, ErrVerificationMismatch))
	assert.False(t, errors.Is(err, ErrIncompleteResponse))
	assert.Equal(t, "verification mismatch: byte 4: wrote 0x17, read 0x18, byte 5: wrote 0x44, read 0x40", err.Error())
	assert.False(t, err.HeadOnly())
}

func TestVerificationMismatchErrorHeadOnly(t *testing.T) {
	written := DefaultConfig()
	written.Head = HeadConfigSaveSoft

	err := &VerificationMismatchError{Written: written, Read: DefaultConfig()}

	assert.True(t, err.HeadOnly())
	assert.Equal(t, "verification mismatch: byte 0: wrote 0xC2, read 0xC0", err.Error())
}

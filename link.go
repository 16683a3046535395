package e32

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/basilfx/go-utilities/taskrunner"
	"github.com/twinj/uuid"
)

// Listener represents the identifier of a listener.
type Listener uuid.UUID

func (l Listener) String() string {
	return uuid.UUID(l).String()
}

// RequestTimeout is the time the Request method waits for a response.
const RequestTimeout = 5 * time.Second

// WriterChannelSize is the size of the writer channel.
const WriterChannelSize = 32

// ListenerChannelSize is the size of the channel that is created for each
// listener.
const ListenerChannelSize = 32

// MaxPayloadSize is the largest payload that fits in one sub-packet of the
// module, together with the frame terminator.
const MaxPayloadSize = 57

// frameTerminator ends every frame on the air.
const frameTerminator = '\n'

// Errors returned when sending a message.
var (
	ErrInvalidPayload  = errors.New("payload is empty or contains a frame terminator")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
)

// Link exchanges messages with other modules while the module is in normal
// or wake-up mode. Every message is a single line on the air.
type Link struct {
	stream io.ReadWriter
	fixed  bool

	taskRunner *taskrunner.TaskRunner

	writer    chan Message
	listeners map[Listener]chan Message
	lock      sync.RWMutex
}

// LinkOption is a functional option for configuring a Link.
type LinkOption func(*Link)

// WithFixedTransmission prefixes every outgoing message with the address and
// channel of its target. The module must be configured with FixedMode set.
func WithFixedTransmission() LinkOption {
	return func(l *Link) {
		l.fixed = true
	}
}

// NewLink returns a new initialized instance of Link.
func NewLink(opts ...LinkOption) *Link {
	l := &Link{
		writer:     make(chan Message, WriterChannelSize),
		listeners:  map[Listener]chan Message{},
		taskRunner: taskrunner.New(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Register interest in received messages.
func (l *Link) Register() (Listener, chan Message) {
	c := make(chan Message, ListenerChannelSize)
	id := Listener(uuid.NewV4())

	l.lock.Lock()
	defer l.lock.Unlock()

	l.listeners[id] = c

	return id, c
}

// Unregister interest in received messages.
func (l *Link) Unregister(id Listener) {
	l.lock.Lock()
	defer l.lock.Unlock()

	c, ok := l.listeners[id]

	if !ok {
		return
	}

	delete(l.listeners, id)

	close(c)
}

// Request sends a message, and waits for the next received message or a
// time-out.
func (l *Link) Request(message Message) (Message, error) {
	id, c := l.Register()
	defer l.Unregister(id)

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	if err := l.Send(message); err != nil {
		return Message{}, err
	}

	select {
	case <-ctx.Done():
		return Message{}, errors.New("timeout while waiting for response")
	case r, ok := <-c:
		if !ok {
			return Message{}, errors.New("listener closed while waiting for response")
		}

		return r, nil
	}
}

// Send queues a message for transmission.
func (l *Link) Send(message Message) error {
	if err := validatePayload(message.Payload); err != nil {
		return err
	}

	select {
	case l.writer <- message:
		return nil
	default:
		return errors.New("writer channel full")
	}
}

// Serve a link. It returns after the link is shut down and the stream stopped
// delivering data, so the stream must be closed to unblock a pending read.
func (l *Link) Serve(stream io.ReadWriter) {
	l.stream = stream

	l.taskRunner.RunWithCancel("Link.Writer", l.writerTask)
	l.taskRunner.RunWithCancel("Link.Reader", l.readerTask)

	// Wait for both goroutines to complete.
	l.taskRunner.Wait()
}

// Shutdown the link. This does not close the underlying stream.
func (l *Link) Shutdown() {
	if l.taskRunner != nil {
		l.taskRunner.Cancel()
	}
}

func validatePayload(payload []byte) error {
	if len(payload) == 0 || bytes.IndexByte(payload, frameTerminator) >= 0 {
		return ErrInvalidPayload
	}

	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	return nil
}

// EncodeFrame returns the bytes to write to a module in normal mode to
// transmit a message. With fixed set, the address and channel of the target
// are put in front of the payload.
func EncodeFrame(message Message, fixed bool) ([]byte, error) {
	if err := validatePayload(message.Payload); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 3+len(message.Payload)+1)

	if fixed {
		frame = append(frame,
			byte(message.Target.Address>>8),
			byte(message.Target.Address),
			message.Target.Channel)
	}

	frame = append(frame, message.Payload...)
	frame = append(frame, frameTerminator)

	return frame, nil
}

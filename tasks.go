package e32

import (
	"bufio"
	"context"

	log "github.com/sirupsen/logrus"
)

func (l *Link) writerTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Debugf("Writer task stopped.")
			return
		case message := <-l.writer:
			frame, err := EncodeFrame(message, l.fixed)

			if err != nil {
				log.Errorf("Dropped message: %v", err)
				continue
			}

			log.Debugf("Link outgoing: % X", frame)

			_, err = l.stream.Write(frame)

			if err != nil {
				log.Errorf("Error while writing: %v", err)
				return
			}
		}
	}
}

func (l *Link) readerTask(ctx context.Context) {
	scanner := bufio.NewScanner(l.stream)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			log.Infof("Reader task stopped.")
			return
		default:
			// Pass on.
		}

		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		log.Debugf("Link incoming: % X", line)

		// The scanner reuses its buffer.
		payload := make([]byte, len(line))
		copy(payload, line)

		message := Message{
			Payload: payload,
		}

		// Notify all reading listeners of a new message.
		l.lock.RLock()

		for id, v := range l.listeners {
			select {
			case v <- message:
				continue
			default:
				log.Errorf("Channel of listener '%s' full.", id)
			}
		}

		l.lock.RUnlock()
	}

	if scanner.Err() != nil {
		log.Errorf("Error while reading: %v", scanner.Err())
		return
	}
}

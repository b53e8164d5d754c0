//go:build !linux

package sequencer

import "errors"

func raisePriority() error {
	return errors.New("thread priority not supported on this platform")
}

//go:build linux

package sequencer

import "golang.org/x/sys/unix"

// clockNice is the nice level asked for the clock thread. Going below zero
// needs CAP_SYS_NICE or a matching RLIMIT_NICE.
const clockNice = -10

// raisePriority lowers the nice value of the calling OS thread.
func raisePriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), clockNice)
}

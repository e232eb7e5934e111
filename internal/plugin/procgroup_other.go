//go:build !unix

package plugin

import "os/exec"

// configureProcessGroup is a no-op outside Unix: cmd.Cancel's default
// (kill the immediate child) is the best available without process
// groups, consistent with the Non-goal of no stronger sandboxing than
// the host OS provides.
func configureProcessGroup(cmd *exec.Cmd) {}

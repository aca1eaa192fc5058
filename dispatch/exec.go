package dispatch

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MessagePlaceholder marks where the chat seed text is substituted in an
// open-chat argv template.
const MessagePlaceholder = "{message}"

// ExecDispatcher forwards commands to the host editor by running its CLI.
// Each action is an argv template; the open-chat template may contain
// MessagePlaceholder, replaced with the seed text at dispatch time.
//
// Example templates for VS Code:
//
//	OpenChatArgv:     ["code", "chat", "{message}"]
//	ClearHistoryArgv: ["code", "--command", "workbench.action.chat.clearHistory"]
type ExecDispatcher struct {
	OpenChatArgv     []string
	ClearHistoryArgv []string
	Logger           logrus.FieldLogger
}

// OpenChat runs the open-chat command with the seed text substituted.
func (d *ExecDispatcher) OpenChat(ctx context.Context, text string) error {
	argv := substitute(d.OpenChatArgv, text)
	return d.run(ctx, "open_chat", argv)
}

// ClearHistory runs the clear-history command.
func (d *ExecDispatcher) ClearHistory(ctx context.Context) error {
	return d.run(ctx, "clear_history", d.ClearHistoryArgv)
}

func (d *ExecDispatcher) run(ctx context.Context, action string, argv []string) error {
	if len(argv) == 0 {
		return ErrNotConfigured
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s command failed: %s", action, strings.TrimSpace(string(out)))
	}

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"action":  action,
			"command": argv[0],
		}).Debug("dispatched host command")
	}
	return nil
}

func substitute(argv []string, text string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = strings.ReplaceAll(arg, MessagePlaceholder, text)
	}
	return out
}

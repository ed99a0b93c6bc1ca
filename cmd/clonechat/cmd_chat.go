package main

import (
	"fmt"

	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/tui"
	"digital-clone/frontend/pkg/observability"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var noAudio bool

// chatCmd opens the interactive chat with one clone
var chatCmd = &cobra.Command{
	Use:   "chat <clone-id>",
	Short: "Open a chat with a clone",
	Long: `Open the terminal chat with a clone. The newest conversation is
resumed, or a new one is started.

Press tab to select a reply and ctrl+s to hear it spoken. Speech is played
with the command in AUDIO_PLAYER (ffplay by default).`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&noAudio, "no-audio", false, "Disable speech playback")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.store.Authenticated() {
		return fmt.Errorf("not signed in: run 'clonechat login'")
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	var sink audio.Sink
	if !noAudio && len(a.cfg.Audio.PlayerCommand) > 0 {
		sink = audio.NewCommandSink(a.cfg.Audio.PlayerCommand, "", a.log)
	}

	model := tui.New(tui.Config{
		Backend: a.api,
		CloneID: args[0],
		Sink:    sink,
		Log:     a.log,
		Metrics: metrics,
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

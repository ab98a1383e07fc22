package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"riptide/internal/pipeline"
	"riptide/internal/ui"
)

// runPipelineWithUI runs the batch in the background while the terminal shows
// a live progress view fed from the pipeline event channel.
func runPipelineWithUI(ctx context.Context, title string, files []string, req *pipeline.Request) (pipeline.Result, error) {
	events := make(chan pipeline.Event, 256)

	type runOutcome struct {
		result pipeline.Result
		err    error
	}
	outcome := make(chan runOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Run(ctx, &reqCopy)
		outcome <- runOutcome{result: res, err: err}
		// Закрытый канал сообщает модели, что батч завершён.
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()

	res := <-outcome
	if uiErr != nil && res.err == nil {
		return res.result, fmt.Errorf("ui failure: %w", uiErr)
	}
	return res.result, res.err
}

package imageprocessing

import (
	"fmt"
	"log/slog"
	"time"
)

// Command is one step of a preview pipeline.
type Command interface {
	Name() string
	Execute(imageData []byte) ([]byte, error)
}

// CommandInvoker executes a sequence of commands on image data
type CommandInvoker struct {
	commands []Command
}

func NewCommandInvoker(commands ...Command) *CommandInvoker {
	return &CommandInvoker{
		commands: commands,
	}
}

// Execute applies all commands in sequence, feeding each output into the next command.
func (i *CommandInvoker) Execute(imageData []byte) ([]byte, error) {
	start := time.Now()
	currentData := imageData

	for idx, command := range i.commands {
		processedData, err := command.Execute(currentData)
		if err != nil {
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}

		slog.Debug("preview command completed",
			"index", idx,
			"command_name", command.Name(),
			"input_size_bytes", len(currentData),
			"output_size_bytes", len(processedData))
		currentData = processedData
	}

	slog.Debug("preview pipeline completed",
		"command_count", len(i.commands),
		"total_duration_ms", time.Since(start).Milliseconds(),
		"final_size_bytes", len(currentData))
	return currentData, nil
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"paperling/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if jsonOutput {
				raw, err := client.Raw(cmd.Context(), "/status")
				if err != nil {
					return wrapAPIError(err, ctx.config)
				}
				return writeRawJSON(cmd, raw)
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapAPIError(err, ctx.config)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderStatus(status, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw /status JSON")
	return cmd
}

func renderStatus(status api.StatusResponse, colorize bool) string {
	var lines []string

	lines = append(lines, renderSectionHeader("Workflow", colorize)...)
	lines = append(lines, renderStatusLine("State", workflowStateKind(status.Workflow.State), status.Workflow.State, colorize))
	lines = append(lines, renderValueLine("Processing", yesNo(status.IsProcessing)))
	if status.InFlight != nil {
		message := fmt.Sprintf("#%d %s", status.InFlight.ID, status.InFlight.Title)
		if status.Workflow.InFlightSince != "" {
			message += " (since " + status.Workflow.InFlightSince + ")"
		}
		lines = append(lines, renderStatusLine("Converting", statusInfo, message, colorize))
	} else {
		lines = append(lines, renderValueLine("Converting", "none"))
	}
	lines = append(lines,
		renderValueLine("Queue length", strconv.Itoa(status.QueueLength)),
		renderValueLine("Last poll", fallback(status.Workflow.LastPoll, "never")),
		renderValueLine("Succeeded", strconv.FormatInt(status.Workflow.Succeeded, 10)),
		renderValueLine("Failed", strconv.FormatInt(status.Workflow.Failed, 10)),
	)
	if status.Workflow.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
	}

	cfg := status.Configuration
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Configuration", colorize)...)
	if cfg.TagID != nil {
		lines = append(lines, renderStatusLine("Tag", statusOK, fmt.Sprintf("%s (id %d)", cfg.TagName, *cfg.TagID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Tag", statusWarn, cfg.TagName+" (unresolved)", colorize))
	}
	lines = append(lines,
		renderValueLine("Check interval", fmt.Sprintf("%d ms", cfg.CheckInterval)),
		renderValueLine("Pipeline", cfg.DoclingPipeline),
		renderValueLine("Model", cfg.DoclingModel),
		renderValueLine("Device", cfg.DoclingDevice),
		renderValueLine("Threads", strconv.Itoa(cfg.DoclingThreads)),
		renderValueLine("PDF backend", cfg.DoclingPDFBackend),
		renderValueLine("OCR engine", cfg.DoclingOCREngine),
		renderValueLine("Extra args", fallback(cfg.DoclingExtraArgs, "none")),
		renderValueLine("Max attempts", maxAttemptsLabel(cfg.MaxAttempts)),
		renderValueLine("Retry backoff", fmt.Sprintf("%ds", cfg.RetryBackoffSeconds)),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Processing queue", colorize)...)
	if len(status.ProcessingQueue) == 0 {
		lines = append(lines, statusIndent+"empty")
	} else {
		lines = append(lines, renderQueueTable(status.ProcessingQueue))
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderQueueTable(docs []api.DocumentRef) string {
	rows := make([][]string, 0, len(docs))
	for i, doc := range docs {
		rows = append(rows, []string{strconv.Itoa(i + 1), strconv.FormatInt(doc.ID, 10), doc.Title})
	}
	return renderTable([]string{"#", "Document", "Title"}, rows, tableOptions{
		aligns:    []columnAlignment{alignRight, alignRight, alignLeft},
		maxWidths: map[int]int{3: titleWidthMax},
	})
}

func workflowStateKind(state string) statusKind {
	switch state {
	case "idle", "processing", "polling":
		return statusOK
	case "stopped":
		return statusWarn
	default:
		return statusInfo
	}
}

func maxAttemptsLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

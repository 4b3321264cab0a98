// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/CarbonFrame/pkg/ux"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

func runWatch(cmd *cobra.Command, args []string) {
	engineURL := firstNonEmpty(watchEngineURL, cliConfig.Engine.URL)
	if engineURL == "" {
		outputError(false, "No engine configured", fmt.Errorf("set --engine or engine.url in config.yaml"))
		exit(run.ExitError)
	}

	secret := os.Getenv("CARBONFRAME_WEBHOOK_SECRET")
	if secret == "" {
		outputError(false, "Missing credentials", fmt.Errorf("CARBONFRAME_WEBHOOK_SECRET is not set"))
		exit(run.ExitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsURL := eventsURL(engineURL)
	header := http.Header{}
	header.Set("X-Webhook-Secret", secret)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		outputError(false, "Could not connect to the event feed", err)
		exit(run.ExitError)
	}
	defer conn.Close()

	ux.Title(fmt.Sprintf("Watching run events from %s", engineURL))
	ux.Muted("Press Ctrl+C to stop.")

	// Close the socket cleanly when the user interrupts; the read loop
	// below unblocks with an error once the connection drops.
	go func() {
		<-ctx.Done()
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				ux.Muted("Stopped.")
				exit(run.ExitSuccess)
			}
			outputError(false, "Event feed closed", err)
			exit(run.ExitError)
		}

		var event datatypes.RunEvent
		if err := json.Unmarshal(data, &event); err != nil {
			ux.Warning(fmt.Sprintf("Skipping malformed event: %v", err))
			continue
		}
		printRunEvent(event)
	}
}

// eventsURL converts an engine base URL into the websocket feed address.
func eventsURL(engineURL string) string {
	wsURL := engineURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return strings.TrimRight(wsURL, "/") + "/v1/runs/events"
}

// printRunEvent renders one event line, styled by severity.
func printRunEvent(event datatypes.RunEvent) {
	stamp := time.Time(event.Timestamp).Local().Format("15:04:05")
	line := fmt.Sprintf("%s  %s  %s", stamp, shortRunID(event.RunID), event.Message)

	switch event.Severity {
	case datatypes.SeverityWarning:
		ux.Warning(line)
	case datatypes.SeverityError:
		ux.Error(line)
	default:
		if event.Status == datatypes.RunStatusSucceeded {
			ux.Success(line)
		} else {
			ux.Info(line)
		}
	}
}

// shortRunID trims a uuid down to its first block for terminal output.
func shortRunID(runID string) string {
	if i := strings.IndexByte(runID, '-'); i > 0 {
		return runID[:i]
	}
	return runID
}

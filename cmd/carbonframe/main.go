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
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CarbonFrame/pkg/ux"
)

var cliConfig CLIConfig

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg, err := loadCLIConfig(configPath)
		if err != nil {
			log.Fatalf("Error reading %s: %v", configPath, err)
		}
		cliConfig = cfg

		// Initialize UX personality from flag or environment
		if personalityLevel != "" {
			ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
		} else {
			ux.InitPersonality()
		}

		// --json implies machine output
		if jsonFlagSet(cmd) {
			ux.SetPersonalityLevel(ux.PersonalityMachine)
		}
	}
}

// jsonFlagSet reports whether the invoked command carries --json=true.
func jsonFlagSet(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("json")
	return flag != nil && flag.Value.String() == "true"
}

// exit wraps os.Exit so commands read uniformly.
func exit(code int) {
	os.Exit(code)
}

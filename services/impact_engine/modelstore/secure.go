// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelstore

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// MinMlockLimitKB is the minimum mlock allowance required for the token
// enclave plus memguard's guard pages.
const MinMlockLimitKB = 64

var (
	secureInitOnce      sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// initSecureMemory initializes memguard and checks mlock limits.
//
// # Description
//
// Performs one-time initialization of memguard and validates that the
// system allows locking enough memory for secure token storage. Called
// automatically when creating the first Client.
//
// # Outputs
//
// None. Sets package-level variables mlockSufficient and
// currentMlockLimitKB.
//
// # Limitations
//
//   - Only initializes once (subsequent calls are no-ops)
func initSecureMemory() {
	secureInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		logMlockStatus()
	})
}

// checkMlockLimit checks if the system has sufficient mlock limits.
//
// # Description
//
// Queries the kernel for the current mlock resource limit and compares
// it against the minimum required for the token enclave.
//
// # Outputs
//
//   - bool: True if limit is sufficient (>= MinMlockLimitKB)
//   - int64: Current limit in kilobytes (-1 if unlimited)
//
// # Limitations
//
//   - Only works on Unix-like systems (Linux, macOS, BSD)
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// logMlockStatus logs the current mlock status.
func logMlockStatus() {
	if mlockSufficient {
		slog.Debug("Secure token storage initialized",
			"mlock_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"status", "sufficient",
		)
		return
	}

	if insecureMemoryAllowed() {
		slog.Warn("SECURITY: Running with insecure memory - mlock limit insufficient",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"env_override", "CARBONFRAME_INSECURE_MEMORY=true",
		)
	} else {
		slog.Error("mlock limit insufficient for secure token storage",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"help", "Raise the memlock ulimit or set CARBONFRAME_INSECURE_MEMORY=true",
		)
	}
}

// insecureMemoryAllowed reports whether the operator has opted in to
// running without locked memory for the store token.
func insecureMemoryAllowed() bool {
	return os.Getenv("CARBONFRAME_INSECURE_MEMORY") == "true"
}

// checkSecureMemory verifies the mlock probe outcome before a Client is
// built. Returns an error when locked memory is unavailable and the
// operator has not opted out.
func checkSecureMemory() error {
	initSecureMemory()

	if mlockSufficient || insecureMemoryAllowed() {
		return nil
	}
	return fmt.Errorf(
		"mlock limit insufficient: have %d KB, need %d KB. "+
			"Raise the memlock ulimit or set CARBONFRAME_INSECURE_MEMORY=true",
		currentMlockLimitKB, MinMlockLimitKB,
	)
}

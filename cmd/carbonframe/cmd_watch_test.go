// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventsURL(t *testing.T) {
	tests := []struct {
		name   string
		engine string
		want   string
	}{
		{"http", "http://localhost:8080", "ws://localhost:8080/v1/runs/events"},
		{"https", "https://engine.example.com", "wss://engine.example.com/v1/runs/events"},
		{"trailing slash", "http://localhost:8080/", "ws://localhost:8080/v1/runs/events"},
		{"bare host passes through", "ws://localhost:8080", "ws://localhost:8080/v1/runs/events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eventsURL(tt.engine))
		})
	}
}

func TestShortRunID(t *testing.T) {
	assert.Equal(t, "3f8e2c1d", shortRunID("3f8e2c1d-9a4b-4c6e-8d2f-1a2b3c4d5e6f"))
	assert.Equal(t, "run42", shortRunID("run42"))
	assert.Equal(t, "", shortRunID(""))
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosthq/roost/internal/message"
)

// fakeWorker serves the wire protocol frames given to it, in order.
func fakeWorker(t *testing.T, frames []string) int {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/reply", r.URL.Path)

		var req replyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintln(w, frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestClient_StreamTurn(t *testing.T) {
	port := fakeWorker(t, []string{
		`0:"calling tool"`,
		`9:{"toolCallId":"c1","toolName":"fs__list","args":{"path":"."}}`,
		`a:{"toolCallId":"c1","result":"a.txt\nb.txt"}`,
		`0:" done"`,
		`d:{"finishReason":"stop","usage":{"promptTokens":5,"completionTokens":9}}`,
	})

	r := NewReducer()
	r.AppendUser("list files")

	client := NewClient()
	err := client.StreamTurn(context.Background(), port, r.Messages(), r.Apply)
	require.NoError(t, err)

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "calling tool done", msgs[1].Content)
	require.Len(t, msgs[1].ToolInvocations, 1)
	assert.Equal(t, message.StateResult, msgs[1].ToolInvocations[0].State)

	fin := r.Finish()
	require.NotNil(t, fin)
	assert.Equal(t, 9, fin.Usage.CompletionTokens)
}

func TestClient_SkipsUnknownFrames(t *testing.T) {
	port := fakeWorker(t, []string{
		`0:"hello"`,
		`f:{"some":"future frame"}`,
		`0:" world"`,
		`d:{"finishReason":"stop"}`,
	})

	r := NewReducer()
	r.AppendUser("hi")

	err := NewClient().StreamTurn(context.Background(), port, r.Messages(), r.Apply)
	require.NoError(t, err)
	assert.Equal(t, "hello world", r.Messages()[1].Content)
}

func TestClient_WorkerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	r := NewReducer()
	r.AppendUser("hi")

	err := NewClient().StreamTurn(context.Background(), port, r.Messages(), r.Apply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_ConnectionRefused(t *testing.T) {
	// Grab a port nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	r := NewReducer()
	r.AppendUser("hi")

	err = NewClient().StreamTurn(context.Background(), port, r.Messages(), r.Apply)
	assert.Error(t, err)
}

func TestClient_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `0:"partial"`)
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	r := NewReducer()
	r.AppendUser("hi")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewClient().StreamTurn(ctx, port, r.Messages(), r.Apply)
	}()

	// Wait for the partial delta to arrive, then stop the transport.
	require.Eventually(t, func() bool {
		msgs := r.Messages()
		return len(msgs) == 2 && msgs[1].Content == "partial"
	}, 3*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop on cancellation")
	}

	// Partial output is preserved.
	assert.Equal(t, "partial", r.Messages()[1].Content)
}

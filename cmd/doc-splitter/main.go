package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/docvision/parseflow/internal/models"
	"github.com/docvision/parseflow/internal/services"
)

var (
	splitterInstance *services.SplitterFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// The CloudEvent path fires on bucket uploads; the HTTP path serves the
	// workflow when it wants an explicit output format.
	functions.CloudEvent("SplitOnUpload", splitOnUpload)
	functions.HTTP("HandleSplitDocument", handleSplitDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func initSplitter() error {
	once.Do(func() {
		splitterInstance, initErr = services.NewSplitter(context.Background())
	})
	return initErr
}

// splitOnUpload is the CloudEvent entry point.
func splitOnUpload(ctx context.Context, e cloudevents.Event) error {
	if err := initSplitter(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The error is already logged with context within ProcessUpload.
	return splitterInstance.ProcessUpload(ctx, gcsEvent)
}

// handleSplitDocument is the HTTP handler.
func handleSplitDocument(w http.ResponseWriter, r *http.Request) {
	if err := initSplitter(); err != nil {
		slog.Error("Critical: Splitter initialization failed", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.SplitDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := splitterInstance.Process(r.Context(), &req)
	if err != nil {
		// Error is already logged with context in the Process method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "runId", res.RunID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

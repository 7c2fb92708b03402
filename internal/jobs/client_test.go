package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Helix/internal/domain"
)

func TestHTTPClient_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/structure-prediction/submit" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req PredictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Sequence != "MKV" {
			t.Errorf("unexpected sequence: %s", req.Sequence)
		}

		json.NewEncoder(w).Encode(map[string]any{"job_id": "pred-42", "status": "queued"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ack, err := client.Submit(context.Background(), domain.NodeTypePrediction, &PredictionRequest{Sequence: "MKV"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ack.JobID != "pred-42" {
		t.Errorf("unexpected job id: %s", ack.JobID)
	}
	if ack.State != domain.JobStateQueued {
		t.Errorf("expected queued, got %s", ack.State)
	}
	if ack.Request == nil || ack.Request.Method != http.MethodPost {
		t.Error("request must be captured for the log entry")
	}
	if ack.Response == nil || ack.Response.Status != http.StatusOK {
		t.Error("response must be captured for the log entry")
	}
}

func TestHTTPClient_Submit_NoJobID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "queued"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.Submit(context.Background(), domain.NodeTypeDocking, &DockingRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestHTTPClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docking/status/dock-7" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "completed",
			"progress": 1.0,
			"result":   map[string]any{"complex_url": "https://store/complex.pdb", "affinity": -9.1},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	status, err := client.Status(context.Background(), domain.NodeTypeDocking, "dock-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if status.State != domain.JobStateCompleted {
		t.Errorf("expected completed, got %s", status.State)
	}
	if status.Result["complex_url"] != "https://store/complex.pdb" {
		t.Errorf("result not parsed: %v", status.Result)
	}
}

func TestHTTPClient_Status_TerminalCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.Status(context.Background(), domain.NodeTypePrediction, "x")
	if !errors.Is(err, ErrRemotePoll) {
		t.Fatalf("expected ErrRemotePoll, got %v", err)
	}
	if !IsTerminalError(err) {
		t.Error("410 must classify as terminal")
	}
}

func TestHTTPClient_Status_5xxIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.Status(context.Background(), domain.NodeTypePrediction, "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTerminalError(err) {
		t.Error("5xx must classify as transient")
	}
}

func TestHTTPClient_Cancel(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.URL.Path != "/sequence-design/cancel/des-3" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	if err := client.Cancel(context.Background(), domain.NodeTypeSequenceDesign, "des-3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("cancel endpoint not called")
	}
}

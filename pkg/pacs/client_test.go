package pacs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(baseURL, "orthanc", "secret", 5*time.Second, 10, 500*time.Millisecond)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestSubmit(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/instances" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "orthanc" || pass != "secret" {
			t.Error("expected basic auth credentials")
		}
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"ID":"inst-1","ParentStudy":"study-1","ParentSeries":"series-1","Status":"Success"}`))
	}))
	defer server.Close()

	result, err := testClient(t, server.URL).Submit(context.Background(), []byte("dicom-bytes"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if gotContentType != "application/dicom" {
		t.Fatalf("expected application/dicom, got %q", gotContentType)
	}
	if gotBody != "dicom-bytes" {
		t.Fatalf("body not forwarded verbatim: %q", gotBody)
	}
	if result.ParentStudy != "study-1" || result.ID != "inst-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad dicom", http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := testClient(t, server.URL).Submit(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected an error for a rejected submission")
	}
}

func TestWaitForStudyEventuallyReady(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/studies/study-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"ID":"study-1"}`))
	}))
	defer server.Close()

	if !testClient(t, server.URL).WaitForStudy(context.Background(), "study-1") {
		t.Fatal("expected the study to be confirmed")
	}
	if calls != 3 {
		t.Fatalf("expected 3 polls, got %d", calls)
	}
}

func TestWaitForStudyGivesUp(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if testClient(t, server.URL).WaitForStudy(context.Background(), "study-1") {
		t.Fatal("expected false after the attempt budget")
	}
	if calls != 10 {
		t.Fatalf("expected exactly 10 polls, got %d", calls)
	}
}

func TestInstanceFrame(t *testing.T) {
	const sopUID = "2.25.12345"
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/lookup", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != sopUID {
			t.Errorf("expected lookup body %q, got %q", sopUID, string(body))
		}
		w.Write([]byte(`[{"ID":"ser-1","Type":"Series"},{"ID":"inst-9","Type":"Instance"}]`))
	})
	mux.HandleFunc("/instances/inst-9/frames/3/preview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	data, contentType, err := testClient(t, server.URL).InstanceFrame(context.Background(), sopUID, 3)
	if err != nil {
		t.Fatalf("frame fetch failed: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %q", contentType)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected frame bytes: %q", data)
	}
}

func TestInstanceFrameUnknownUID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, _, err := testClient(t, server.URL).InstanceFrame(context.Background(), "2.25.404", 0); err == nil {
		t.Fatal("expected an error for an unknown instance")
	}
}

func TestInstanceFrameRejectsNegativeFrame(t *testing.T) {
	c := testClient(t, "http://unused")
	if _, _, err := c.InstanceFrame(context.Background(), "2.25.1", -1); err == nil {
		t.Fatal("expected an error for a negative frame number")
	}
}

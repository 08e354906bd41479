package archiver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clubrun/internal/archiver"
	"clubrun/internal/domain"
)

func TestValidContentID(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", true},
		{"bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", true},
		{"", false},
		{"QmTooShort", false},
		// CIDv0 excludes 0, O, I and l from its alphabet.
		{"Qm0wAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", false},
		{"BAFYBEIGDYRZT5SFP7UDM7HU76UH7Y26NF3EFUYLQABF3OCLGTQY55FBZDI", false},
		{"zb2rhe5P4gXftAwvA4eXQ5HJwsER2owDyS9sKaQRRVQPn93bA", false},
	}
	for _, c := range cases {
		if got := archiver.ValidContentID(c.id); got != c.valid {
			t.Fatalf("ValidContentID(%q) = %v, want %v", c.id, got, c.valid)
		}
	}
}

func testProof() domain.ProofDocument {
	return domain.ProofDocument{
		MissionID:  "m1",
		RunnerID:   "r1",
		VerifiedAt: "2024-01-01T00:00:00Z",
		Track:      domain.TrackRequirement{Title: "Night Drive", Artist: "Jamie Vox"},
		Result:     domain.VerificationResult{TrackFound: true, Confidence: 92},
		Method:     "play-history-match",
	}
}

func TestUploadPinsProofDocument(t *testing.T) {
	const wantCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"IpfsHash": wantCID})
	}))
	defer srv.Close()

	client := &archiver.HTTPClient{BaseURL: srv.URL, Token: "pin-token", HTTP: srv.Client()}
	cid, err := client.Upload(context.Background(), testProof())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if cid != wantCID {
		t.Fatalf("cid = %s, want %s", cid, wantCID)
	}
	if gotAuth != "Bearer pin-token" {
		t.Fatalf("authorization = %q, want bearer token", gotAuth)
	}
	if gotPath != "/pinning/pinJSONToIPFS" {
		t.Fatalf("path = %s, want /pinning/pinJSONToIPFS", gotPath)
	}
	content, ok := gotBody["pinataContent"].(map[string]any)
	if !ok {
		t.Fatalf("request missing pinataContent: %v", gotBody)
	}
	if content["mission_id"] != "m1" {
		t.Fatalf("pinned mission_id = %v, want m1", content["mission_id"])
	}
}

func TestUploadRejectsUnrecognizedContentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "not-a-cid"})
	}))
	defer srv.Close()

	client := &archiver.HTTPClient{BaseURL: srv.URL, HTTP: srv.Client()}
	_, err := client.Upload(context.Background(), testProof())
	if err == nil || !strings.Contains(err.Error(), "unrecognized content id") {
		t.Fatalf("err = %v, want unrecognized content id", err)
	}
}

func TestUploadSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := &archiver.HTTPClient{BaseURL: srv.URL, HTTP: srv.Client()}
	_, err := client.Upload(context.Background(), testProof())
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("err = %v, want status 429", err)
	}
}

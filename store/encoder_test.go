package store

import (
	"strings"
	"testing"
)

func sampleRefresh() *RefreshRecord {
	return &RefreshRecord{
		ID:        "3f1d0c9a-1111-2222-3333-444455556666",
		UserID:    "u1",
		SessionID: "s1",
		CreatedAt: 1700000000,
		ExpiresAt: 1700604800,
	}
}

func TestRefreshRecordRoundTrip(t *testing.T) {
	in := sampleRefresh()

	data, err := EncodeRefresh(in)
	if err != nil {
		t.Fatalf("EncodeRefresh failed: %v", err)
	}

	out, err := DecodeRefresh(data)
	if err != nil {
		t.Fatalf("DecodeRefresh failed: %v", err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
	if !out.Live() {
		t.Fatal("expected fresh record to be live")
	}
}

func TestRefreshRecordRotatedRoundTrip(t *testing.T) {
	in := sampleRefresh()
	in.RevokedAt = 1700001000
	in.ReplacedBy = "9a8b7c6d-aaaa-bbbb-cccc-ddddeeee0000"

	data, err := EncodeRefresh(in)
	if err != nil {
		t.Fatalf("EncodeRefresh failed: %v", err)
	}

	out, err := DecodeRefresh(data)
	if err != nil {
		t.Fatalf("DecodeRefresh failed: %v", err)
	}
	if !out.Rotated() {
		t.Fatal("expected rotated record")
	}
	if out.ReplacedBy != in.ReplacedBy {
		t.Fatalf("replacedBy mismatch: %q != %q", out.ReplacedBy, in.ReplacedBy)
	}
}

func TestEncodeRefreshRejectsInvalidRecords(t *testing.T) {
	rec := sampleRefresh()
	rec.ReplacedBy = "9a8b7c6d-aaaa-bbbb-cccc-ddddeeee0000"
	if _, err := EncodeRefresh(rec); err == nil {
		t.Fatal("expected rejection of replacedBy on a live record")
	}

	rec = sampleRefresh()
	rec.RevokedAt = 1
	rec.ReplacedBy = "too-short"
	if _, err := EncodeRefresh(rec); err == nil {
		t.Fatal("expected rejection of short replacedBy")
	}

	rec = sampleRefresh()
	rec.ID = ""
	if _, err := EncodeRefresh(rec); err == nil {
		t.Fatal("expected rejection of empty id")
	}

	rec = sampleRefresh()
	rec.UserID = strings.Repeat("x", 256)
	if _, err := EncodeRefresh(rec); err == nil {
		t.Fatal("expected rejection of oversized user id")
	}
}

func TestDecodeRefreshRejectsTruncatedAndBadVersion(t *testing.T) {
	data, err := EncodeRefresh(sampleRefresh())
	if err != nil {
		t.Fatalf("EncodeRefresh failed: %v", err)
	}

	for cut := 0; cut < len(data); cut++ {
		if _, err := DecodeRefresh(data[:cut]); err == nil {
			t.Fatalf("expected error for truncation at %d bytes", cut)
		}
	}

	bad := append([]byte{}, data...)
	bad[0] = 99
	if _, err := DecodeRefresh(bad); err == nil {
		t.Fatal("expected rejection of unknown version")
	}
}

func sampleSession() *SessionRecord {
	return &SessionRecord{
		ID:           "s1",
		UserID:       "u1",
		AuthMethod:   1,
		CreatedAt:    1700000000,
		ExpiresAt:    1702592000,
		LastActiveAt: 1700000500,
		ClientIP:     "203.0.113.9",
		UserAgent:    "curl/8.0",
	}
}

func TestSessionRecordRoundTrip(t *testing.T) {
	in := sampleSession()

	data, err := EncodeSession(in)
	if err != nil {
		t.Fatalf("EncodeSession failed: %v", err)
	}

	out, err := DecodeSession(data)
	if err != nil {
		t.Fatalf("DecodeSession failed: %v", err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestSessionRecordEmptyClientContext(t *testing.T) {
	in := sampleSession()
	in.ClientIP = ""
	in.UserAgent = ""

	data, err := EncodeSession(in)
	if err != nil {
		t.Fatalf("EncodeSession failed: %v", err)
	}

	out, err := DecodeSession(data)
	if err != nil {
		t.Fatalf("DecodeSession failed: %v", err)
	}
	if out.ClientIP != "" || out.UserAgent != "" {
		t.Fatalf("expected empty client context, got %q %q", out.ClientIP, out.UserAgent)
	}
}

func FuzzDecodeRefresh(f *testing.F) {
	seed, err := EncodeRefresh(sampleRefresh())
	if err != nil {
		f.Fatalf("EncodeRefresh failed: %v", err)
	}
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{1})

	f.Fuzz(func(t *testing.T, data []byte) {
		rec, err := DecodeRefresh(data)
		if err != nil {
			return
		}
		// Anything that decodes must re-encode without error.
		if _, err := EncodeRefresh(rec); err != nil {
			t.Fatalf("re-encode of decoded record failed: %v", err)
		}
	})
}

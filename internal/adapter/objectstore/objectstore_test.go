package objectstore

import "testing"

func TestPublicURLUsesEndpointWhenSet(t *testing.T) {
	s := &S3Store{bucket: "media", region: "us-east-1", endpoint: "http://localhost:9000"}
	got := s.publicURL("abc.mp4")
	want := "http://localhost:9000/media/abc.mp4"
	if got != want {
		t.Errorf("publicURL() = %q, want %q", got, want)
	}
}

func TestPublicURLFallsBackToAWSFormat(t *testing.T) {
	s := &S3Store{bucket: "media", region: "us-east-1"}
	got := s.publicURL("abc.mp4")
	want := "https://media.s3.us-east-1.amazonaws.com/abc.mp4"
	if got != want {
		t.Errorf("publicURL() = %q, want %q", got, want)
	}
}

func TestOwnsURLMatchesBucketName(t *testing.T) {
	s := &S3Store{bucket: "media"}
	if !s.ownsURL("https://media.s3.us-east-1.amazonaws.com/abc.mp4") {
		t.Error("ownsURL() = false, want true for a URL containing the bucket name")
	}
	if s.ownsURL("https://other-cdn.example/abc.mp4") {
		t.Error("ownsURL() = true, want false for an unrelated host")
	}
}

package storage

import (
	"errors"
	"testing"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name   string
		uri    string
		scheme string
		bucket string
		key    string
	}{
		{"s3 native", "s3://chatbotbucket-vkt/transcribe_abc.json", "s3", "chatbotbucket-vkt", "transcribe_abc.json"},
		{"s3 nested key", "s3://bucket/audio/output/x.mp3", "s3", "bucket", "audio/output/x.mp3"},
		{"gs native", "gs://media/results/job.json", "gs", "media", "results/job.json"},
		{"path style regional", "https://s3.ap-southeast-2.amazonaws.com/chatbotbucket-vkt/transcribe_abc.json", "s3", "chatbotbucket-vkt", "transcribe_abc.json"},
		{"path style global", "https://s3.amazonaws.com/bucket/a/b.json", "s3", "bucket", "a/b.json"},
		{"path style legacy dash", "https://s3-us-west-2.amazonaws.com/bucket/k.json", "s3", "bucket", "k.json"},
		{"virtual hosted", "https://chatbotbucket-vkt.s3.ap-southeast-2.amazonaws.com/transcribe_abc.json", "s3", "chatbotbucket-vkt", "transcribe_abc.json"},
		{"virtual hosted global", "https://bucket.s3.amazonaws.com/k.json", "s3", "bucket", "k.json"},
		{"gcs https", "https://storage.googleapis.com/media/results/job.json", "gs", "media", "results/job.json"},
		{"escaped key", "https://s3.amazonaws.com/bucket/my%20file.json", "s3", "bucket", "my file.json"},
		{"surrounding space", "  s3://bucket/k.json ", "s3", "bucket", "k.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocator(tt.uri)
			if err != nil {
				t.Fatalf("ParseLocator(%q) error: %v", tt.uri, err)
			}
			if loc.Scheme != tt.scheme || loc.Bucket != tt.bucket || loc.Key != tt.key {
				t.Errorf("ParseLocator(%q) = %+v, want %s://%s/%s", tt.uri, loc, tt.scheme, tt.bucket, tt.key)
			}
		})
	}
}

func TestParseLocator_NativeAndHTTPSAgree(t *testing.T) {
	tests := []struct {
		name   string
		native string
		https  []string
	}{
		{
			name:   "plain bucket",
			native: "s3://chatbotbucket-vkt/transcribe_1.json",
			https: []string{
				"https://s3.ap-southeast-2.amazonaws.com/chatbotbucket-vkt/transcribe_1.json",
				"https://chatbotbucket-vkt.s3.ap-southeast-2.amazonaws.com/transcribe_1.json",
			},
		},
		{
			name:   "dotted bucket containing s3",
			native: "s3://my.s3files/out/job.json",
			https: []string{
				"https://s3.us-east-1.amazonaws.com/my.s3files/out/job.json",
				"https://my.s3files.s3.us-east-1.amazonaws.com/out/job.json",
				"https://my.s3files.s3.amazonaws.com/out/job.json",
				"https://my.s3files.s3-us-east-1.amazonaws.com/out/job.json",
			},
		},
		{
			name:   "bucket with s3- inside",
			native: "s3://logs.s3-archive/a.json",
			https: []string{
				"https://logs.s3-archive.s3.eu-west-1.amazonaws.com/a.json",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := ParseLocator(tt.native)
			if err != nil {
				t.Fatal(err)
			}
			for _, uri := range tt.https {
				got, err := ParseLocator(uri)
				if err != nil {
					t.Fatalf("ParseLocator(%q) error: %v", uri, err)
				}
				if got != want {
					t.Errorf("ParseLocator(%q) = %+v, want %+v", uri, got, want)
				}
			}
		})
	}
}

func TestParseLocator_Invalid(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"empty", ""},
		{"unsupported scheme", "ftp://bucket/key"},
		{"no scheme", "bucket/key"},
		{"s3 missing key", "s3://bucket"},
		{"s3 missing key slash", "s3://bucket/"},
		{"s3 missing bucket", "s3:///key"},
		{"https missing key", "https://s3.amazonaws.com/bucket"},
		{"https missing bucket", "https://s3.amazonaws.com/"},
		{"virtual hosted missing key", "https://bucket.s3.amazonaws.com/"},
		{"unknown host", "https://example.com/bucket/key"},
		{"other aws service", "https://transcribe.us-east-1.amazonaws.com/bucket/key"},
		{"gcs missing key", "https://storage.googleapis.com/bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLocator(tt.uri)
			if !errors.Is(err, ErrInvalidLocator) {
				t.Errorf("ParseLocator(%q) error = %v, want ErrInvalidLocator", tt.uri, err)
			}
		})
	}
}

func TestLocatorString(t *testing.T) {
	loc := Locator{Scheme: "s3", Bucket: "b", Key: "audio/k.wav"}
	if got := loc.String(); got != "s3://b/audio/k.wav" {
		t.Errorf("String() = %s", got)
	}
}

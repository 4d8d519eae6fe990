package classify

import "testing"

func TestIsTextLike(t *testing.T) {
	cases := []struct {
		name string
		mime string
		want bool
	}{
		{"notes.txt", "", true},
		{"main.go", "", true},
		{".gitignore", "", true},
		{"dir/.env", "", true},
		{"README.MD", "", true},
		{"photo.png", "", false},
		{"Makefile", "", false},
		{"data.bin", "text/plain", true},
		{"data.bin", "application/json; charset=utf-8", true},
		{"config", "application/xml", true},
		{"app.js", "application/javascript", true},
		{"notes.txt", "application/pdf", true},
		{"x.php", "application/x-php", true},
		{"lib.rs", "application/rls-services+xml", true},
		{"main.ts", "application/octet-stream", true},
		{"blob.bin", "application/octet-stream", false},
		{"clip.ts", "video/mp2t", false},
		{"song.ts", "audio/x-foo", false},
		{"logo.svg", "image/svg+xml", false},
	}
	for _, c := range cases {
		if got := IsTextLike(c.name, c.mime); got != c.want {
			t.Errorf("IsTextLike(%q, %q) = %v, want %v", c.name, c.mime, got, c.want)
		}
	}
}

func TestIsImageLike(t *testing.T) {
	cases := []struct {
		name string
		mime string
		want bool
	}{
		{"a.png", "", true},
		{"a.JPEG", "", true},
		{"favicon.ico", "", true},
		{"logo.svg", "", true},
		{"a.bmp", "", false},
		{"blob", "image/png", true},
		{"blob", "IMAGE/WEBP", true},
		{"a.png", "image/tiff", false},
		{"a.png", "text/plain", false},
		{"noext", "", false},
	}
	for _, c := range cases {
		if got := IsImageLike(c.name, c.mime); got != c.want {
			t.Errorf("IsImageLike(%q, %q) = %v, want %v", c.name, c.mime, got, c.want)
		}
	}
}

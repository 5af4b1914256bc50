package services

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"testing"
)

func TestBuildRemoveBgForm(t *testing.T) {
	imageData := []byte{0x89, 'P', 'N', 'G', 0x01, 0x02, 0x03}

	body, contentType, err := buildRemoveBgForm(imageData)
	if err != nil {
		t.Fatalf("buildRemoveBgForm() = %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("bad content type %q: %v", contentType, err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("media type = %q, want multipart/form-data", mediaType)
	}

	reader := multipart.NewReader(bytes.NewReader(body.Bytes()), params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	defer form.RemoveAll()

	files, ok := form.File["image_file"]
	if !ok || len(files) != 1 {
		t.Fatal("form missing image_file part")
	}
	f, err := files[0].Open()
	if err != nil {
		t.Fatalf("open file part: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read file part: %v", err)
	}
	if !bytes.Equal(got, imageData) {
		t.Errorf("image_file bytes differ from input")
	}

	if vals, ok := form.Value["size"]; !ok || len(vals) != 1 || vals[0] != "auto" {
		t.Errorf("size field = %v, want [auto]", form.Value["size"])
	}
}
